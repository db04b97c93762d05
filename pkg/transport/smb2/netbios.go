package smb2

import (
	"encoding/binary"
	"fmt"
	"io"
	"net"
	"net/netip"
	"strings"
)

// NetBIOS session service packet types (RFC 1002, 4.3.1).
const (
	nbSessionRequest  = 0x81
	nbPositiveResp    = 0x82
	nbNegativeResp    = 0x83
	nbRetargetResp    = 0x84
	nbNameLength      = 15
	nbServerSuffix    = 0x20
	nbWorkstationName = "SMBKIT"
)

// wildcardServerName is accepted as the called name by Windows and Samba
// when the real NetBIOS name is unknown.
const wildcardServerName = "*SMBSERVER"

// encodeName returns the first-level encoded form of a NetBIOS name
// (RFC 1001, 14.1): the name is upper-cased, padded with spaces to 15
// bytes, suffixed, and every byte is split into two nibbles offset by 'A'.
// The result is prefixed with its length and terminated by the empty label.
func encodeName(name string, suffix byte) []byte {
	name = strings.ToUpper(name)
	if len(name) > nbNameLength {
		name = name[:nbNameLength]
	}
	raw := make([]byte, nbNameLength+1)
	copy(raw, name)
	for i := len(name); i < nbNameLength; i++ {
		raw[i] = ' '
	}
	raw[nbNameLength] = suffix

	out := make([]byte, 0, 34)
	out = append(out, 32)
	for _, b := range raw {
		out = append(out, 'A'+(b>>4), 'A'+(b&0x0F))
	}
	return append(out, 0)
}

// calledName derives the NetBIOS name to ask for from a host name. Literal
// addresses and empty names fall back to the wildcard server name.
func calledName(host string) string {
	if host == "" {
		return wildcardServerName
	}
	if _, err := netip.ParseAddr(strings.Trim(host, "[]")); err == nil {
		return wildcardServerName
	}
	label, _, _ := strings.Cut(host, ".")
	return label
}

// sessionRequest performs the NetBIOS session establishment on conn. After
// a positive response the connection carries session messages, whose
// framing is the same four byte header SMB direct TCP uses.
func sessionRequest(conn net.Conn, host string) error {
	called := encodeName(calledName(host), nbServerSuffix)
	calling := encodeName(nbWorkstationName, 0x00)

	pkt := make([]byte, 4, 4+len(called)+len(calling))
	pkt[0] = nbSessionRequest
	binary.BigEndian.PutUint16(pkt[2:], uint16(len(called)+len(calling)))
	pkt = append(pkt, called...)
	pkt = append(pkt, calling...)

	if _, err := conn.Write(pkt); err != nil {
		return fmt.Errorf("netbios session request: %w", err)
	}

	var hdr [4]byte
	if _, err := io.ReadFull(conn, hdr[:]); err != nil {
		return fmt.Errorf("netbios session response: %w", err)
	}
	length := int(hdr[1]&0x01)<<16 | int(binary.BigEndian.Uint16(hdr[2:]))
	body := make([]byte, length)
	if _, err := io.ReadFull(conn, body); err != nil {
		return fmt.Errorf("netbios session response: %w", err)
	}

	switch hdr[0] {
	case nbPositiveResp:
		return nil
	case nbNegativeResp:
		code := byte(0)
		if len(body) > 0 {
			code = body[0]
		}
		return fmt.Errorf("netbios session refused: %s", negativeReason(code))
	case nbRetargetResp:
		return fmt.Errorf("netbios session retargeted by server")
	default:
		return fmt.Errorf("netbios session: unexpected packet type 0x%02x", hdr[0])
	}
}

func negativeReason(code byte) string {
	switch code {
	case 0x80:
		return "not listening on called name"
	case 0x81:
		return "not listening for calling name"
	case 0x82:
		return "called name not present"
	case 0x83:
		return "insufficient resources"
	case 0x8F:
		return "unspecified error"
	default:
		return fmt.Sprintf("error 0x%02x", code)
	}
}
