package main

import (
	"fmt"
	"net/url"
	"strings"

	"github.com/skip2/go-qrcode"
)

const inviteQRSize = 256

// InviteURL is the link a second player opens to join a passcode room
func InviteURL(publicURL, passcode string) string {
	return strings.TrimRight(publicURL, "/") + "/?room=" + url.QueryEscape(passcode)
}

// InvitePNG renders the invite link for raw as a QR code. raw must be a
// valid passcode.
func InvitePNG(publicURL, raw string) ([]byte, error) {
	code, err := NormalizePasscode(raw)
	if err != nil {
		return nil, err
	}
	png, err := qrcode.Encode(InviteURL(publicURL, code), qrcode.Medium, inviteQRSize)
	if err != nil {
		return nil, fmt.Errorf("encode invite qr: %w", err)
	}
	return png, nil
}
