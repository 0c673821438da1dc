package changefeed

import (
	"crypto/ecdsa"
	"strings"

	"github.com/aukilabs/go-tooling/pkg/errors"
	"github.com/ethereum/go-ethereum/crypto"
)

// Sign hashes the payload with Keccak-256 and signs the hash.
func Sign(payload []byte, key *ecdsa.PrivateKey) (hash []byte, signature []byte, err error) {
	if key == nil {
		return nil, nil, errors.New("no private key to sign payload")
	}

	hash = crypto.Keccak256Hash(payload).Bytes()
	signature, err = crypto.Sign(hash, key)
	if err != nil {
		return nil, nil, errors.New("signing payload failed").Wrap(err)
	}
	return hash, signature, nil
}

// Verify checks that the payload has been signed by the wallet with the given
// address.
func Verify(payload, signature []byte, address string) error {
	hash := crypto.Keccak256Hash(payload).Bytes()

	pub, err := crypto.SigToPub(hash, signature)
	if err != nil {
		return errors.New("recovering signer failed").Wrap(err)
	}

	signer := crypto.PubkeyToAddress(*pub).Hex()
	if !strings.EqualFold(signer, address) {
		return errors.New("payload not signed by the expected address").
			WithTag("signer", signer).
			WithTag("address", address)
	}
	return nil
}
