package classify

import (
	"github.com/gregLibert/menkyo-reader/pkg/iso7816"
	"github.com/gregLibert/menkyo-reader/pkg/license"
)

// Command is a named, pre-encoded APDU of the probe sequence.
type Command struct {
	Name  string
	Bytes []byte
}

func mustEncode(name string, c *iso7816.CommandAPDU) Command {
	b, err := c.Bytes()
	if err != nil {
		panic(name + ": " + err.Error())
	}
	return Command{Name: name, Bytes: b}
}

// The probe sequence, in the order the classifier may send it.
var (
	CmdStartSession     = mustEncode("start session", iso7816.StartSession())
	CmdBeginTransparent = mustEncode("begin transparent", iso7816.StartTransparent())
	CmdCheckInspection  = mustEncode("check inspection", iso7816.GetData(iso7816.GetDataHistorical))
	CmdGetUID           = mustEncode("get uid", iso7816.GetData(iso7816.GetDataUID))
	CmdSelectMF         = mustEncode("select mf", iso7816.SelectMF(iso7816.InterindustryClass()))
	CmdQueryAttempts    = mustEncode("query attempts", iso7816.VerifyRetryCounter(iso7816.InterindustryClass(), iso7816.PINLocal1))
	CmdSelectCommonData = mustEncode("select common data", iso7816.SelectEF(iso7816.InterindustryClass(), license.CommonDataFID))
	CmdReadCommonData   = mustEncode("read common data", iso7816.ReadBinary(iso7816.InterindustryClass(), 0, license.CommonDataLength))
	CmdSelectFeliCa     = mustEncode("select felica", iso7816.ReaderDirect(0x50, 0x00, []byte{0xFF, 0xFF}))
	CmdEndTransparent   = mustEncode("end transparent", iso7816.EndSession())
)

// InspectionSignature is the GET DATA reply of a vehicle inspection card.
var InspectionSignature = []byte{0x06, 0x78, 0x77, 0x81, 0x02, 0x80}

// LicenseATRPrefix is the uppercase hex ATR prefix shared by driver's licenses.
const LicenseATRPrefix = "3B888001000000"
