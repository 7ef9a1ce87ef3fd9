// Package classify probes an open card session and decides what kind of
// card it is: vehicle inspection certificate, driver's license or other.
package classify

import (
	"bytes"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/gregLibert/menkyo-reader/pkg/bits"
	"github.com/gregLibert/menkyo-reader/pkg/iso7816"
	"github.com/gregLibert/menkyo-reader/pkg/license"
	"github.com/sirupsen/logrus"
)

// Transmitter is the part of a session the classifier needs.
type Transmitter interface {
	ATR() []byte
	Transmit(cmd []byte) (data []byte, sw1, sw2 byte, err error)
}

// Classifier runs the probe sequence.
type Classifier struct {
	log *logrus.Entry
	now func() time.Time
}

// New returns a Classifier logging through log. A nil log uses the
// standard logrus logger.
func New(log *logrus.Entry) *Classifier {
	if log == nil {
		log = logrus.WithField("component", "classify")
	}
	return &Classifier{log: log, now: time.Now}
}

// Classify runs the probe sequence over s. Any transport error aborts the
// sequence and no partial result is returned.
func (c *Classifier) Classify(s Transmitter) (*Result, error) {
	atr := s.ATR()
	res := &Result{Type: Other, ATR: atr}

	// Session setup replies carry nothing we act on.
	for _, cmd := range []Command{CmdStartSession, CmdBeginTransparent} {
		if _, err := c.send(s, cmd); err != nil {
			return nil, err
		}
	}

	inspection, err := c.send(s, CmdCheckInspection)
	if err != nil {
		return nil, err
	}

	switch {
	case bytes.Equal(inspection.Data, InspectionSignature):
		res.Type = CarInspection
	case strings.HasPrefix(fmt.Sprintf("%X", atr), LicenseATRPrefix):
		licensed, err := c.readLicense(s, res)
		if err != nil {
			return nil, err
		}
		if licensed {
			res.Type = DriverLicense
		}
	}

	if _, err := c.send(s, CmdSelectFeliCa); err != nil {
		return nil, err
	}
	uid, err := c.send(s, CmdGetUID)
	if err != nil {
		return nil, err
	}
	res.UID = uid.Data

	c.log.WithFields(logrus.Fields{
		"card_type": res.Type,
		"atr":       fmt.Sprintf("%X", atr),
		"uid":       fmt.Sprintf("%X", res.UID),
	}).Info("card classified")
	return res, nil
}

// readLicense runs the license branch. It reports false when the common
// data read did not succeed, so the card falls through to Other.
func (c *Classifier) readLicense(s Transmitter, res *Result) (bool, error) {
	// Only the session side effect of this GET DATA matters.
	if _, err := c.send(s, CmdGetUID); err != nil {
		return false, err
	}
	if _, err := c.send(s, CmdSelectMF); err != nil {
		return false, err
	}

	attempts, err := c.send(s, CmdQueryAttempts)
	if err != nil {
		return false, err
	}
	// A verified PIN answers 9000. Any other status carries the counter in
	// the low nibble of SW2, 63CX as well as a blocked 6983.
	if attempts.Status != iso7816.SW_NO_ERROR {
		res.Attempts = strconv.Itoa(int(bits.Low(attempts.Status.SW2())))
	}

	if _, err := c.send(s, CmdSelectCommonData); err != nil {
		return false, err
	}
	record, err := c.send(s, CmdReadCommonData)
	if err != nil {
		return false, err
	}

	if record.Status != iso7816.SW_NO_ERROR {
		c.log.WithField("status", record.Status.Verbose()).Warn("license common data not readable")
		return false, nil
	}
	if len(record.Data) != license.CommonDataLength {
		return false, &ProtocolError{
			Step:   CmdReadCommonData.Name,
			Status: record.Status,
			Length: len(record.Data),
			Want:   license.CommonDataLength,
		}
	}

	content, err := iso7816.NewReadBinaryResult(0, record)
	if err != nil {
		return false, fmt.Errorf("%s: %w", CmdReadCommonData.Name, err)
	}
	c.log.Debug(content.Describe())

	res.DueDate = fmt.Sprintf("%X", content.Data)
	c.decodeCommonData(content.Data, res)
	return true, nil
}

// decodeCommonData is informational only: failures are logged and never
// change the identity.
func (c *Classifier) decodeCommonData(raw []byte, res *Result) {
	cd, err := license.ParseCommonData(raw)
	if err != nil {
		c.log.WithError(err).Warn("license common data did not decode")
		return
	}
	res.CommonData = cd
	c.log.Debug(cd.Describe())

	expired, err := cd.Expired(c.now())
	switch {
	case err != nil:
		c.log.WithError(err).Warn("license expiry date invalid")
	case expired:
		exp, _ := cd.Expires()
		c.log.WithField("expiry", exp.Format("2006-01-02")).Warn("license expired")
	}
}

func (c *Classifier) send(s Transmitter, cmd Command) (*iso7816.ResponseAPDU, error) {
	data, sw1, sw2, err := s.Transmit(cmd.Bytes)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", cmd.Name, err)
	}
	resp := &iso7816.ResponseAPDU{Data: data, Status: iso7816.NewStatusWord(sw1, sw2)}
	c.log.WithField("step", cmd.Name).Debug(resp.String())
	return resp, nil
}
