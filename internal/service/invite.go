package service

import (
	"crypto/rand"
	"math/big"
)

const (
	inviteTokenLength   = 16
	inviteTokenAlphabet = "ABCDEFGHIJKLMNOPQRSTUVWXYZabcdefghijklmnopqrstuvwxyz0123456789"
)

func newInviteToken() (string, error) {
	max := big.NewInt(int64(len(inviteTokenAlphabet)))
	b := make([]byte, inviteTokenLength)
	for i := range b {
		n, err := rand.Int(rand.Reader, max)
		if err != nil {
			return "", err
		}
		b[i] = inviteTokenAlphabet[n.Int64()]
	}
	return string(b), nil
}
