package session

import (
	"errors"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/gregLibert/menkyo-reader/pkg/iso7816"
	"github.com/gregLibert/menkyo-reader/pkg/session/sessiontest"
	"github.com/gregLibert/menkyo-reader/pkg/tlv"
)

func TestOpen(t *testing.T) {
	card := sessiontest.NewCard("3B 88 80 01 00 00 00 00 91 81 C1 00 D8")

	s, err := Open(card)
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	if diff := cmp.Diff(card.Atr, s.ATR()); diff != "" {
		t.Errorf("ATR mismatch (-want +got):\n%s", diff)
	}
	if card.Connects() != 1 {
		t.Errorf("Connects = %d, want 1", card.Connects())
	}
}

func TestOpen_ConnectFailure(t *testing.T) {
	card := sessiontest.NewCard("3B00")
	card.ConnectErr = errors.New("no card")

	_, err := Open(card)
	if !errors.Is(err, ErrTransport) {
		t.Fatalf("Open error = %v, want ErrTransport", err)
	}
	var te *TransportError
	if !errors.As(err, &te) || te.Op != "connect" {
		t.Errorf("TransportError = %+v, want Op connect", te)
	}

	if _, err := Open(nil); !errors.Is(err, ErrTransport) {
		t.Errorf("Open(nil) error = %v, want ErrTransport", err)
	}
}

func TestTransmit(t *testing.T) {
	card := sessiontest.NewCard("3B00").
		Reply("FF CA 01 00 00", "06 78 77 81 02 80 90 00").
		Reply("00 20 00 81", "63 C3")

	s, err := Open(card)
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}

	tests := []struct {
		cmd      string
		wantData []byte
		sw1, sw2 byte
	}{
		{"FF CA 01 00 00", tlv.Hex("06 78 77 81 02 80"), 0x90, 0x00},
		{"00 20 00 81", []byte{}, 0x63, 0xC3},
	}

	for _, tt := range tests {
		data, sw1, sw2, err := s.Transmit(tlv.Hex(tt.cmd))
		if err != nil {
			t.Fatalf("Transmit(%s) failed: %v", tt.cmd, err)
		}
		if diff := cmp.Diff(tt.wantData, data); diff != "" {
			t.Errorf("Transmit(%s) data mismatch (-want +got):\n%s", tt.cmd, diff)
		}
		if sw1 != tt.sw1 || sw2 != tt.sw2 {
			t.Errorf("Transmit(%s) SW = %02X%02X, want %02X%02X", tt.cmd, sw1, sw2, tt.sw1, tt.sw2)
		}
	}

	if got := s.Last().Response.Status; got != iso7816.NewStatusWord(0x63, 0xC3) {
		t.Errorf("Last status = %s", got.Verbose())
	}
	if len(s.Trace()) != 2 {
		t.Errorf("Trace length = %d, want 2", len(s.Trace()))
	}
}

func TestTransmit_Failures(t *testing.T) {
	card := sessiontest.NewCard("3B00").
		Reply("00 A4 00 00", "90").
		Fail("00 B0 00 00 11", errors.New("card removed"))

	s, err := Open(card)
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}

	t.Run("Short reply", func(t *testing.T) {
		if _, _, _, err := s.Transmit(tlv.Hex("00 A4 00 00")); !errors.Is(err, ErrTransport) {
			t.Errorf("error = %v, want ErrTransport", err)
		}
	})

	t.Run("Link failure", func(t *testing.T) {
		_, _, _, err := s.Transmit(tlv.Hex("00 B0 00 00 11"))
		if !errors.Is(err, ErrTransport) {
			t.Errorf("error = %v, want ErrTransport", err)
		}
		if last := s.Last(); last.Err == nil || last.Response != nil {
			t.Errorf("last transaction = %+v, want recorded failure", last)
		}
	})

	t.Run("After close", func(t *testing.T) {
		if err := s.Close(); err != nil {
			t.Fatalf("Close failed: %v", err)
		}
		_, _, _, err := s.Transmit(tlv.Hex("00 A4 00 00"))
		if !errors.Is(err, ErrClosed) || !errors.Is(err, ErrTransport) {
			t.Errorf("error = %v, want ErrClosed transport error", err)
		}
	})
}

func TestSend(t *testing.T) {
	card := sessiontest.NewCard("3B00").Reply("00 A4 02 0C 02 2F 01", "90 00")
	s, err := Open(card)
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}

	resp, err := s.Send(iso7816.SelectEF(iso7816.InterindustryClass(), 0x2F01))
	if err != nil {
		t.Fatalf("Send failed: %v", err)
	}
	if resp.Status != iso7816.SW_NO_ERROR {
		t.Errorf("Status = %s", resp.Status.Verbose())
	}

	bad := iso7816.ReadBinary(iso7816.InterindustryClass(), 0, -1)
	if _, err := s.Send(bad); err == nil || errors.Is(err, ErrTransport) {
		t.Errorf("Send(invalid Ne) error = %v, want encode error", err)
	}
	if diff := cmp.Diff([]string{"00A4020C022F01"}, card.Sent()); diff != "" {
		t.Errorf("Sent mismatch (-want +got):\n%s", diff)
	}
}

func TestClose_Idempotent(t *testing.T) {
	card := sessiontest.NewCard("3B00")
	card.DisconnectErr = errors.New("already gone")

	s, err := Open(card)
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}

	if err := s.Close(); !errors.Is(err, ErrTransport) {
		t.Errorf("first Close error = %v, want ErrTransport", err)
	}
	if err := s.Close(); err != nil {
		t.Errorf("second Close error = %v, want nil", err)
	}
	if card.Disconnects() != 1 {
		t.Errorf("Disconnects = %d, want 1", card.Disconnects())
	}
	if !s.Closed() {
		t.Error("Closed() = false after Close")
	}
}
