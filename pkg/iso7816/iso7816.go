/*
Package iso7816 implements the APDU building blocks used to talk to contact and
contactless cards through a PC/SC reader.

It covers Command and Response APDU encoding (ISO/IEC 7816-3 and 7816-4),
Status Word analysis, the CLA and INS bytes, and constructors for the handful
of commands the enrollment reader needs.

# Interindustry and reader commands

Two command families share the same wire format:

  - Interindustry commands (CLA 0x00) are processed by the card itself:
    SELECT, VERIFY, READ BINARY.
  - Reader pseudo-APDUs (CLA 0xFF, PC/SC Part 3) are intercepted by the reader
    firmware: GET DATA (UID), transparent session management, FeliCa polling.

ISO 7816-4 reserves CLA 0xFF, which is why the reader class is modelled
separately (see ReaderClass).

# Status Words

Every response ends with a 2-byte Status Word (SW).
  - 0x9000: Success.
  - 0x63CX: Warning with counter, X is the number of remaining tries.
  - Other: various warning and error conditions.

# Usage

	cmd := iso7816.ReadBinary(iso7816.InterindustryClass(), 0, 17)
	raw, _ := cmd.Bytes() // 00 B0 00 00 11

	resp, err := iso7816.ParseResponseAPDU(rawFromCard)
	if err != nil {
	    return err
	}
	if resp.Status.IsSuccess() {
	    fmt.Printf("%X\n", resp.Data)
	}
*/
package iso7816
