// Package cryptox holds the cryptographic building blocks of the file store:
// the key vault, the authenticated stream cipher engine and content checksums.
package cryptox

import "golang.org/x/crypto/argon2"

// DeriveMasterKey stretches a passphrase into a 256-bit key with Argon2id.
func DeriveMasterKey(password []byte, salt []byte) []byte {
	return argon2.IDKey(password, salt, 1, 64*1024, 4, KeySize)
}
