package service

import (
	"crypto/rand"
	"encoding/hex"
)

const (
	idBytes = 16
	// share tokens stand in for a login on public datasets
	tokenBytes   = 32
	sessionBytes = 32
)

func randomHex(n int) string {
	bytes := make([]byte, n)
	_, _ = rand.Read(bytes)
	return hex.EncodeToString(bytes)
}

func newID() string {
	return randomHex(idBytes)
}

func newToken() string {
	return randomHex(tokenBytes)
}

func newSessionID() string {
	return randomHex(sessionBytes)
}
