package crypto

import (
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	"crypto/x509"
	"crypto/x509/pkix"
	"math/big"
	"testing"
	"time"

	"github.com/edgelesssys/go-dcap-qvl/blobs"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestVerifyCertificateChain(t *testing.T) {
	pckChain := parseChain(t, blobs.PCKCertPEM, blobs.PlatformCACertPEM, blobs.RootCACertPEM)
	expiredChain := parseChain(t, blobs.ExpiredPCKCertPEM, blobs.PlatformCACertPEM, blobs.RootCACertPEM)
	revokedChain := parseChain(t, blobs.RevokedPCKCertPEM, blobs.PlatformCACertPEM, blobs.RootCACertPEM)
	trustedRoot := pckChain[2]

	pckCRL := parseCRL(t, blobs.PCKCRL)
	rootCACRL := parseCRL(t, blobs.RootCACRL)
	crls := []*x509.RevocationList{pckCRL, rootCACRL}

	testCases := map[string]struct {
		chain            []*x509.Certificate
		nilRoot          bool
		crls             []*x509.RevocationList
		verificationTime time.Time
		wantErr          error
	}{
		"valid chain": {
			chain: pckChain,
		},
		"valid chain terminating below the root": {
			chain: pckChain[:2],
		},
		"empty chain": {
			chain:   nil,
			wantErr: ErrChainBroken,
		},
		"no trusted root": {
			chain:   pckChain,
			nilRoot: true,
			wantErr: ErrUntrustedRoot,
		},
		"broken issuer linkage": {
			chain:   []*x509.Certificate{pckChain[1], pckChain[0], pckChain[2]},
			wantErr: ErrChainBroken,
		},
		"terminal certificate not issued by the root": {
			chain:   pckChain[:1],
			wantErr: ErrUntrustedRoot,
		},
		"expired certificate": {
			chain:   expiredChain,
			wantErr: ErrCertExpired,
		},
		"certificate not yet valid": {
			chain:            pckChain,
			verificationTime: time.Date(2000, 1, 1, 0, 0, 0, 0, time.UTC),
			wantErr:          ErrCertNotYetValid,
		},
		"revoked certificate": {
			chain:   revokedChain,
			wantErr: ErrCertRevoked,
		},
		"missing CRL for PCK issuer": {
			chain:   pckChain,
			crls:    []*x509.RevocationList{rootCACRL},
			wantErr: ErrMissingCRL,
		},
		"CRL not signed by the issuer": {
			chain:   pckChain,
			crls:    []*x509.RevocationList{imposterCRL(t), rootCACRL},
			wantErr: ErrInvalidCRL,
		},
	}

	for name, tc := range testCases {
		t.Run(name, func(t *testing.T) {
			assert := assert.New(t)

			root := trustedRoot
			if tc.nilRoot {
				root = nil
			}
			chainCRLs := tc.crls
			if chainCRLs == nil {
				chainCRLs = crls
			}
			verificationTime := tc.verificationTime
			if verificationTime.IsZero() {
				verificationTime = blobs.PCSIssueDate
			}

			err := VerifyCertificateChain(tc.chain, root, chainCRLs, verificationTime)
			if tc.wantErr != nil {
				assert.ErrorIs(err, tc.wantErr)
				return
			}
			assert.NoError(err)
		})
	}
}

func TestVerifyCertificateChainNamesFailingCert(t *testing.T) {
	assert := assert.New(t)
	require := require.New(t)

	expiredChain := parseChain(t, blobs.ExpiredPCKCertPEM, blobs.PlatformCACertPEM, blobs.RootCACertPEM)
	root := expiredChain[2]
	crls := []*x509.RevocationList{parseCRL(t, blobs.PCKCRL), parseCRL(t, blobs.RootCACRL)}

	err := VerifyCertificateChain(expiredChain, root, crls, blobs.PCSIssueDate)
	require.ErrorIs(err, ErrCertExpired)
	assert.ErrorContains(err, "Intel SGX PCK Certificate")
}

func parseChain(t *testing.T, certsPEM ...[]byte) []*x509.Certificate {
	t.Helper()
	require := require.New(t)

	var chainPEM []byte
	for _, certPEM := range certsPEM {
		chainPEM = append(chainPEM, certPEM...)
	}
	chain, err := ParsePEMCertificateChain(chainPEM)
	require.NoError(err)
	require.Len(chain, len(certsPEM))
	return chain
}

func parseCRL(t *testing.T, der []byte) *x509.RevocationList {
	t.Helper()

	crl, err := x509.ParseRevocationList(der)
	require.NoError(t, err)
	return crl
}

// imposterCRL returns a CRL whose issuer name matches the PCK Platform CA
// but that is signed by a different key.
func imposterCRL(t *testing.T) *x509.RevocationList {
	t.Helper()
	require := require.New(t)

	key, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	require.NoError(err)

	template := &x509.Certificate{
		SerialNumber: big.NewInt(1337),
		Subject: pkix.Name{
			CommonName:   "Intel SGX PCK Platform CA",
			Organization: []string{"Intel Corporation"},
			Locality:     []string{"Santa Clara"},
			Province:     []string{"CA"},
			Country:      []string{"US"},
		},
		NotBefore:             time.Date(2018, 5, 21, 0, 0, 0, 0, time.UTC),
		NotAfter:              time.Date(2049, 12, 31, 23, 59, 59, 0, time.UTC),
		IsCA:                  true,
		BasicConstraintsValid: true,
		KeyUsage:              x509.KeyUsageCertSign | x509.KeyUsageCRLSign,
	}
	certDER, err := x509.CreateCertificate(rand.Reader, template, template, &key.PublicKey, key)
	require.NoError(err)
	cert, err := x509.ParseCertificate(certDER)
	require.NoError(err)

	crlDER, err := x509.CreateRevocationList(rand.Reader, &x509.RevocationList{
		Number:     big.NewInt(1),
		ThisUpdate: blobs.PCSIssueDate,
		NextUpdate: time.Date(2049, 12, 31, 23, 59, 59, 0, time.UTC),
	}, cert, key)
	require.NoError(err)
	crl, err := x509.ParseRevocationList(crlDER)
	require.NoError(err)
	return crl
}
