// Package signing holds the cryptographic primitives behind license tokens.
//
// # Key Pairs
//
// Signing keys are RSA key pairs used with RS256, RS384 or RS512. Keys below
// 2048 bits are refused.
//
//	key, err := signing.GenerateKeyPair(signing.RS256, 2048)
//	if err != nil {
//	    return err
//	}
//	kid := key.Fingerprint()
//	pub := key.PublicPEM()
//
// PEM input is checked structurally with ValidatePEM before any parsing is
// attempted, so truncated or mislabelled material is reported as
// InvalidKeyMaterial rather than as an opaque ASN.1 failure.
//
// # Data Cipher
//
// Private keys are sealed at rest with AES-256-GCM under the service data key:
//
//	c, err := signing.NewDataCipher(dataKey)
//	sealed, err := c.Encrypt([]byte(keyID), key.PrivatePEM())
//	plain, err := c.Decrypt([]byte(keyID), sealed)
package signing
