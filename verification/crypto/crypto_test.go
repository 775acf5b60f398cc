package crypto

import (
	"crypto"
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	"crypto/sha256"
	"encoding/pem"
	"testing"

	"github.com/edgelesssys/go-dcap-qvl/blobs"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestVerifyECDSASignature(t *testing.T) {
	require := require.New(t)

	key, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	require.NoError(err)
	otherKey, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	require.NoError(err)

	data := []byte("quote bytes to sign")
	signature := signRaw(require, key, data)

	invalidScalar := make([]byte, 64)
	elliptic.P256().Params().N.FillBytes(invalidScalar[:32])
	copy(invalidScalar[32:], signature[32:])

	testCases := map[string]struct {
		publicKey crypto.PublicKey
		data      []byte
		signature []byte
		wantErr   error
	}{
		"valid signature": {
			publicKey: &key.PublicKey,
			data:      data,
			signature: signature,
		},
		"signature too short": {
			publicKey: &key.PublicKey,
			data:      data,
			signature: signature[:63],
			wantErr:   ErrMalformedSignature,
		},
		"signature too long": {
			publicKey: &key.PublicKey,
			data:      data,
			signature: append(append([]byte{}, signature...), 0x0),
			wantErr:   ErrMalformedSignature,
		},
		"all zero signature": {
			publicKey: &key.PublicKey,
			data:      data,
			signature: make([]byte, 64),
			wantErr:   ErrMalformedSignature,
		},
		"r not below curve order": {
			publicKey: &key.PublicKey,
			data:      data,
			signature: invalidScalar,
			wantErr:   ErrMalformedSignature,
		},
		"modified data": {
			publicKey: &key.PublicKey,
			data:      []byte("tampered quote bytes"),
			signature: signature,
			wantErr:   ErrSignatureMismatch,
		},
		"wrong key": {
			publicKey: &otherKey.PublicKey,
			data:      data,
			signature: signature,
			wantErr:   ErrSignatureMismatch,
		},
	}

	for name, tc := range testCases {
		t.Run(name, func(t *testing.T) {
			assert := assert.New(t)

			err := VerifyECDSASignature(tc.publicKey, tc.data, tc.signature)
			if tc.wantErr != nil {
				assert.ErrorIs(err, tc.wantErr)
				return
			}
			assert.NoError(err)
		})
	}

	assert.Error(t, VerifyECDSASignature(nil, data, signature))

	offCurveKey := BuildECDSAPublicKey([64]byte{0x1})
	assert.Error(t, VerifyECDSASignature(offCurveKey, data, signature))
}

func TestBuildECDSAPublicKey(t *testing.T) {
	assert := assert.New(t)
	require := require.New(t)

	key, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	require.NoError(err)

	var rawPublicKey [64]byte
	key.PublicKey.X.FillBytes(rawPublicKey[:32])
	key.PublicKey.Y.FillBytes(rawPublicKey[32:])

	builtKey := BuildECDSAPublicKey(rawPublicKey)
	assert.True(key.PublicKey.Equal(builtKey))

	data := []byte("attestation key test")
	assert.NoError(VerifyECDSASignature(builtKey, data, signRaw(require, key, data)))
}

func TestParseCertificates(t *testing.T) {
	assert := assert.New(t)
	require := require.New(t)

	pckBlock, _ := pem.Decode(blobs.PCKCertPEM)
	require.NotNil(pckBlock)
	rootBlock, _ := pem.Decode(blobs.RootCACertPEM)
	require.NotNil(rootBlock)

	certs, err := ParseCertificates([][]byte{pckBlock.Bytes, rootBlock.Bytes})
	require.NoError(err)
	require.Len(certs, 2)
	assert.Equal("Intel SGX PCK Certificate", certs[0].Subject.CommonName)
	assert.Equal("Intel SGX Root CA", certs[1].Subject.CommonName)

	_, err = ParseCertificates([][]byte{pckBlock.Bytes, []byte("not DER")})
	assert.ErrorContains(err, "certificate 2 of 2")
}

func TestParsePEMCertificateChain(t *testing.T) {
	assert := assert.New(t)
	require := require.New(t)

	chain, err := ParsePEMCertificateChain([]byte(blobs.PCKCRLIssuerChain))
	require.NoError(err)
	require.Len(chain, 2)
	assert.Equal("Intel SGX PCK Platform CA", chain[0].Subject.CommonName)
	assert.Equal("Intel SGX Root CA", chain[1].Subject.CommonName)

	// Chains from quotes are NUL terminated, the terminator is ignored.
	chain, err = ParsePEMCertificateChain(append([]byte(blobs.PCKCRLIssuerChain), 0x0))
	require.NoError(err)
	assert.Len(chain, 2)

	// Input without PEM blocks yields an empty chain, not an error.
	chain, err = ParsePEMCertificateChain([]byte("no certificates here"))
	require.NoError(err)
	assert.Empty(chain)

	// A PEM certificate block with garbage content is an error.
	garbageBlock := pem.EncodeToMemory(&pem.Block{Type: "CERTIFICATE", Bytes: []byte("not DER")})
	_, err = ParsePEMCertificateChain(garbageBlock)
	assert.Error(err)
}

func TestMustParsePEMCertificate(t *testing.T) {
	assert := assert.New(t)

	cert := MustParsePEMCertificate(blobs.RootCACertPEM)
	assert.Equal("Intel SGX Root CA", cert.Subject.CommonName)

	assert.Panics(func() { MustParsePEMCertificate([]byte("no certificates here")) })
}

func signRaw(require *require.Assertions, key *ecdsa.PrivateKey, data []byte) []byte {
	digest := sha256.Sum256(data)
	r, s, err := ecdsa.Sign(rand.Reader, key, digest[:])
	require.NoError(err)

	signature := make([]byte, 64)
	r.FillBytes(signature[:32])
	s.FillBytes(signature[32:])
	return signature
}
