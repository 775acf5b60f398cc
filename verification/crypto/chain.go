package crypto

import (
	"bytes"
	"crypto/x509"
	"errors"
	"fmt"
	"time"
)

var (
	// ErrChainBroken is returned when a certificate in the chain was not issued and signed
	// by the certificate following it.
	ErrChainBroken = errors.New("certificate chain broken")

	// ErrUntrustedRoot is returned when the last certificate of the chain is neither the
	// trusted root itself nor issued and signed by it.
	ErrUntrustedRoot = errors.New("certificate chain does not end at the trusted root")

	// ErrCertExpired is returned when a certificate validity window ends before the verification time.
	ErrCertExpired = errors.New("certificate expired")

	// ErrCertNotYetValid is returned when a certificate validity window starts after the verification time.
	ErrCertNotYetValid = errors.New("certificate not yet valid")

	// ErrCertRevoked is returned when a certificate is listed in its issuer's CRL.
	ErrCertRevoked = errors.New("certificate revoked by CRL")

	// ErrMissingCRL is returned when no CRL of a certificate's issuer was provided.
	ErrMissingCRL = errors.New("no CRL for certificate issuer")

	// ErrInvalidCRL is returned when a matching CRL was not signed by the certificate's issuer.
	ErrInvalidCRL = errors.New("invalid CRL")
)

// VerifyCertificateChain verifies a certificate chain, ordered leaf first, against a
// trusted root certificate at the given point in time.
//
// Every certificate must be issued and signed by its successor, and the last certificate
// must either be the trusted root or be issued and signed by it. Every certificate must
// be inside its validity window at the verification time. Every certificate except the
// trusted root must have a CRL of its issuer in crls and must not be listed in it.
//
// Errors name the certificate that failed the check.
func VerifyCertificateChain(chain []*x509.Certificate, trustedRoot *x509.Certificate, crls []*x509.RevocationList, verificationTime time.Time) error {
	if len(chain) == 0 {
		return fmt.Errorf("%w: empty certificate chain", ErrChainBroken)
	}
	if trustedRoot == nil {
		return fmt.Errorf("%w: no trusted root certificate given", ErrUntrustedRoot)
	}

	// Establish chain structure before looking at validity windows or revocation,
	// so failures are attributed to certificates whose place in the chain is known.
	for i := 0; i < len(chain)-1; i++ {
		cert, issuer := chain[i], chain[i+1]
		if !bytes.Equal(cert.RawIssuer, issuer.RawSubject) {
			return fmt.Errorf("%w: certificate %q was not issued by %q", ErrChainBroken, cert.Subject.CommonName, issuer.Subject.CommonName)
		}
		if err := cert.CheckSignatureFrom(issuer); err != nil {
			return fmt.Errorf("%w: certificate %q signature not valid under %q: %v", ErrChainBroken, cert.Subject.CommonName, issuer.Subject.CommonName, err)
		}
	}

	terminal := chain[len(chain)-1]
	if !bytes.Equal(terminal.Raw, trustedRoot.Raw) {
		if !bytes.Equal(terminal.RawIssuer, trustedRoot.RawSubject) {
			return fmt.Errorf("%w: certificate %q was not issued by %q", ErrUntrustedRoot, terminal.Subject.CommonName, trustedRoot.Subject.CommonName)
		}
		if err := terminal.CheckSignatureFrom(trustedRoot); err != nil {
			return fmt.Errorf("%w: certificate %q signature not valid under %q: %v", ErrUntrustedRoot, terminal.Subject.CommonName, trustedRoot.Subject.CommonName, err)
		}
	}

	for _, cert := range chain {
		if verificationTime.Before(cert.NotBefore) {
			return fmt.Errorf("%w: certificate %q is not valid before %s", ErrCertNotYetValid, cert.Subject.CommonName, cert.NotBefore.Format(time.RFC3339))
		}
		if verificationTime.After(cert.NotAfter) {
			return fmt.Errorf("%w: certificate %q expired on %s", ErrCertExpired, cert.Subject.CommonName, cert.NotAfter.Format(time.RFC3339))
		}
	}

	for i, cert := range chain {
		if isSelfSigned(cert) {
			continue
		}
		issuer := trustedRoot
		if i+1 < len(chain) {
			issuer = chain[i+1]
		}
		if err := checkRevocation(cert, issuer, crls); err != nil {
			return err
		}
	}

	return nil
}

// checkRevocation looks up the CRL of the certificate's issuer and checks the
// certificate is not listed in it.
func checkRevocation(cert, issuer *x509.Certificate, crls []*x509.RevocationList) error {
	var crl *x509.RevocationList
	for _, candidate := range crls {
		if candidate != nil && bytes.Equal(candidate.RawIssuer, cert.RawIssuer) {
			crl = candidate
			break
		}
	}
	if crl == nil {
		return fmt.Errorf("%w: certificate %q issued by %q", ErrMissingCRL, cert.Subject.CommonName, cert.Issuer.CommonName)
	}

	if err := crl.CheckSignatureFrom(issuer); err != nil {
		return fmt.Errorf("%w: CRL of issuer %q signature not valid: %v", ErrInvalidCRL, cert.Issuer.CommonName, err)
	}

	for _, crlEntry := range crl.RevokedCertificates {
		if crlEntry.SerialNumber.Cmp(cert.SerialNumber) == 0 {
			return fmt.Errorf("%w: certificate %q with serial number %v", ErrCertRevoked, cert.Subject.CommonName, cert.SerialNumber)
		}
	}
	return nil
}

// isSelfSigned reports whether the certificate is its own issuer.
// The trusted root's self-issued certificate has no CRL above it to consult.
func isSelfSigned(cert *x509.Certificate) bool {
	return bytes.Equal(cert.RawIssuer, cert.RawSubject)
}
