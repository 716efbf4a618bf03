package crypto

import "errors"

var (
	// ErrVerify means the detached signature did not verify against
	// the purported sender, or was not in canonical form.
	ErrVerify = errors.New("crypto: signature verification failed")
	// ErrHpke means HPKE setup or AEAD decryption failed.
	ErrHpke = errors.New("crypto: hpke failure")
	// ErrMissingCiphertext means a confidential operation was applied
	// to a message without a ciphertext frame.
	ErrMissingCiphertext = errors.New("crypto: missing ciphertext")
	// ErrUnexpectedSender means the envelope names a different sender
	// than the VID the caller verified against.
	ErrUnexpectedSender = errors.New("crypto: unexpected sender")
	// ErrUnexpectedRecipient means the envelope is addressed to a
	// different identifier than the opening VID.
	ErrUnexpectedRecipient = errors.New("crypto: unexpected recipient")
	// ErrUnsupportedSuite means the envelope carries a suite this
	// build has no key material model for (the post-quantum suite).
	ErrUnsupportedSuite = errors.New("crypto: unsupported cipher suite")
)
