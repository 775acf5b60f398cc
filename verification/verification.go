/*
# Intel SGX/TDX Quote Verification

This package verifies Intel SGX and TDX ECDSA attestation quotes.

Verification of a quote follows these steps:

  - Parse the binary quote.

  - Parse and verify the PCK certificate chain embedded in the quote against the
    trusted Intel SGX Root CA, including revocation checks using the PCK CRL and
    Root CA CRL.

  - Verify the quote's signature chain: the PCK signed the QE report, the QE report
    binds the attestation key, and the attestation key signed the quote header and
    report body.

  - Verify the collateral: the TCB Info and QE Identity signing chains and signatures,
    and that both were issued for the quote's TEE.

  - Match the platform TCB and the QE against the collateral to determine the TCB status.

Verification stops at the first failing step and returns a [*VerificationError] naming it.

[Verifier] fetches collateral from Intel's PCS (or a PCCS) and verifies at the current
time. [VerifyQuote] is the pure core: it takes the raw quote, the collateral, a trusted
root certificate, and a verification time, and touches neither network nor system clock.
*/
package verification

import (
	"bytes"
	"context"
	"crypto/sha256"
	"crypto/x509"
	"errors"
	"fmt"
	"time"

	"github.com/edgelesssys/go-dcap-qvl/verification/crypto"
	"github.com/edgelesssys/go-dcap-qvl/verification/pcs"
	"github.com/edgelesssys/go-dcap-qvl/verification/status"
	"github.com/edgelesssys/go-dcap-qvl/verification/types"
	"k8s.io/utils/clock"
)

// VerificationResult is the outcome of a successfully verified quote.
// It exists only for quotes whose signatures and certificate chains are valid.
type VerificationResult struct {
	// Status is the TCB status of the platform and its Quoting Enclave.
	Status status.TCBStatus
	// AdvisoryIDs lists the Intel security advisories that apply to the platform
	// at this status. Empty for an up to date platform.
	AdvisoryIDs []string
	// Body is the verified report body of the quote: types.EnclaveReport for SGX,
	// types.TDReport10 or types.TDReport15 for TDX.
	Body types.ReportBody
	// FMSPC is the platform model identifier from the PCK certificate, the key the
	// TCB Info was selected by.
	FMSPC [6]byte
	// VerificationTime is the reference time the quote was verified at.
	VerificationTime time.Time
	// StaleCollateral names the collateral pieces past their next update at the
	// verification time. Stale collateral does not fail verification, but callers
	// with strict freshness requirements may want to reject it.
	StaleCollateral []string
}

// Verifier verifies SGX/TDX quotes using collateral fetched from Intel's PCS or a PCCS.
type Verifier struct {
	pcsClient *pcs.TrustedServicesClient
	rootCA    *x509.Certificate
	clock     clock.PassiveClock
}

// New creates a Verifier fetching collateral from Intel's PCS
// and trusting Intel's SGX Root CA.
func New() *Verifier {
	return NewWithClient(pcs.New())
}

// NewWithClient creates a Verifier fetching collateral with the given client,
// e.g. one pointed at a PCCS instead of Intel's PCS.
func NewWithClient(client *pcs.TrustedServicesClient) *Verifier {
	return &Verifier{
		pcsClient: client,
		rootCA:    pcs.IntelRootCA(),
		clock:     clock.RealClock{},
	}
}

// Verify fetches the collateral for the given raw quote and verifies the quote
// against it at the current time.
func (v *Verifier) Verify(ctx context.Context, rawQuote []byte) (VerificationResult, error) {
	collateral, err := v.pcsClient.GetCollateral(ctx, rawQuote)
	if err != nil {
		return VerificationResult{}, fmt.Errorf("getting collateral: %w", err)
	}
	return VerifyQuote(rawQuote, collateral, v.rootCA, v.clock.Now())
}

// VerifyQuote verifies a raw SGX/TDX quote against the given collateral.
//
// The caller chooses the trust anchor and the verification time: trustedRoot is the
// root CA certificate the PCK and collateral signing chains must terminate at, and
// verificationTime is the point in time certificate validity windows are checked
// against. The function is deterministic and performs no I/O.
//
// On failure the returned error is a [*VerificationError] naming the failed step,
// and the result is empty: a quote failing any step has no partial results.
func VerifyQuote(rawQuote []byte, collateral *types.Collateral, trustedRoot *x509.Certificate, verificationTime time.Time) (VerificationResult, error) {
	quote, err := types.ParseQuote(rawQuote)
	if err != nil {
		return VerificationResult{}, &VerificationError{StepParseQuote, err}
	}

	if collateral == nil {
		return VerificationResult{}, &VerificationError{StepVerifyCollateral, errors.New("no collateral given")}
	}
	rootCACRL, err := x509.ParseRevocationList(collateral.RootCACRL)
	if err != nil {
		return VerificationResult{}, &VerificationError{StepVerifyCollateral, fmt.Errorf("parsing root CA CRL: %w", err)}
	}
	pckCRL, err := x509.ParseRevocationList(collateral.PCKCRL)
	if err != nil {
		return VerificationResult{}, &VerificationError{StepVerifyCollateral, fmt.Errorf("parsing PCK CRL: %w", err)}
	}
	crls := []*x509.RevocationList{pckCRL, rootCACRL}

	pckChain, err := parsePCKCertChain(quote)
	if err != nil {
		return VerificationResult{}, &VerificationError{StepVerifyPCKChain, err}
	}
	pckCert := pckChain[0]
	if err := crypto.VerifyCertificateChain(pckChain, trustedRoot, crls, verificationTime); err != nil {
		return VerificationResult{}, &VerificationError{StepVerifyPCKChain, err}
	}
	pckExtensions, err := types.ParsePCKSGXExtensions(pckCert)
	if err != nil {
		return VerificationResult{}, &VerificationError{StepVerifyPCKChain, fmt.Errorf("getting SGX extensions from PCK certificate: %w", err)}
	}

	if err := verifyQuoteSignatures(quote, pckCert); err != nil {
		return VerificationResult{}, &VerificationError{StepVerifySignatures, err}
	}

	tcbInfo, qeIdentity, err := verifyCollateral(quote.Header.TEEType, collateral, trustedRoot, rootCACRL, verificationTime)
	if err != nil {
		return VerificationResult{}, &VerificationError{StepVerifyCollateral, err}
	}

	evaluation, err := evaluateTCB(quote, pckExtensions, tcbInfo, qeIdentity)
	if err != nil {
		return VerificationResult{}, &VerificationError{StepEvaluateTCB, err}
	}

	return VerificationResult{
		Status:           evaluation.Status,
		AdvisoryIDs:      evaluation.AdvisoryIDs,
		Body:             quote.Body,
		FMSPC:            pckExtensions.FMSPC,
		VerificationTime: verificationTime,
		StaleCollateral:  staleCollateral(verificationTime, tcbInfo, qeIdentity, pckCRL, rootCACRL),
	}, nil
}

// verifyQuoteSignatures verifies the quote's signature chain: the PCK signed the
// QE report, the QE report binds the attestation key, and the attestation key
// signed the quote header and report body.
func verifyQuoteSignatures(quote types.Quote, pckCert *x509.Certificate) error {
	qeReport := quote.Signature.QEReport.Marshal()
	if err := crypto.VerifyECDSASignature(pckCert.PublicKey, qeReport[:], quote.Signature.QEReportSignature[:]); err != nil {
		return fmt.Errorf("verifying QE report signature: %w", err)
	}

	// The QE proves it issued this attestation key by embedding the hash of the key
	// and its auth data in the report it had signed by the PCK.
	concatSHA256 := sha256.Sum256(append(quote.Signature.PublicKey[:], quote.Signature.QEAuthData.Data...))
	if !bytes.Equal(quote.Signature.QEReport.ReportData[:32], concatSHA256[:]) {
		return errors.New("QE report data does not match attestation key and QE authentication data")
	}

	toVerify, err := quote.SignedData()
	if err != nil {
		return fmt.Errorf("marshaling signed quote data: %w", err)
	}
	attestationKey := crypto.BuildECDSAPublicKey(quote.Signature.PublicKey) // This key is called attestKey in Intel's code.
	if err := crypto.VerifyECDSASignature(attestationKey, toVerify, quote.Signature.Signature[:]); err != nil {
		return fmt.Errorf("verifying quote signature: %w", err)
	}
	return nil
}

// verifyCollateral verifies the collateral's signing chains and signatures against the
// trusted root, parses TCB Info and QE Identity, and checks both were issued for the
// quote's TEE type.
func verifyCollateral(
	teeType uint32, collateral *types.Collateral, trustedRoot *x509.Certificate,
	rootCACRL *x509.RevocationList, verificationTime time.Time,
) (types.TCBInfo, types.QEIdentity, error) {
	wantTCBInfoID := types.TCBInfoSGXID
	wantQEIdentityID := types.QEIdentitySGXID
	if teeType == types.TEETypeTDX {
		wantTCBInfoID = types.TCBInfoTDXID
		wantQEIdentityID = types.QEIdentityTDXID
	}

	tcbInfoSigner, err := verifyIssuerChain("TCB Info", collateral.TCBInfoIssuerChain, trustedRoot, rootCACRL, verificationTime)
	if err != nil {
		return types.TCBInfo{}, types.QEIdentity{}, err
	}
	if err := crypto.VerifyECDSASignature(tcbInfoSigner.PublicKey, collateral.RawTCBInfo, collateral.TCBInfoSignature); err != nil {
		return types.TCBInfo{}, types.QEIdentity{}, fmt.Errorf("verifying TCB Info signature: %w", err)
	}
	tcbInfo, err := collateral.TCBInfo()
	if err != nil {
		return types.TCBInfo{}, types.QEIdentity{}, err
	}
	if tcbInfo.Version < types.TCBInfoMinVersion {
		return types.TCBInfo{}, types.QEIdentity{}, fmt.Errorf("TCB Info version %d is not supported (requires at least %d)", tcbInfo.Version, types.TCBInfoMinVersion)
	}
	if tcbInfo.ID != wantTCBInfoID {
		return types.TCBInfo{}, types.QEIdentity{}, fmt.Errorf("TCB Info was generated for a different TEE: expected %s, got %s", wantTCBInfoID, tcbInfo.ID)
	}

	qeIdentitySigner, err := verifyIssuerChain("QE Identity", collateral.QEIdentityIssuerChain, trustedRoot, rootCACRL, verificationTime)
	if err != nil {
		return types.TCBInfo{}, types.QEIdentity{}, err
	}
	if err := crypto.VerifyECDSASignature(qeIdentitySigner.PublicKey, collateral.RawQEIdentity, collateral.QEIdentitySignature); err != nil {
		return types.TCBInfo{}, types.QEIdentity{}, fmt.Errorf("verifying QE Identity signature: %w", err)
	}
	qeIdentity, err := collateral.QEIdentity()
	if err != nil {
		return types.TCBInfo{}, types.QEIdentity{}, err
	}
	if qeIdentity.Version != types.QEIdentityVersion {
		return types.TCBInfo{}, types.QEIdentity{}, fmt.Errorf("QE Identity version %d is not supported (requires %d)", qeIdentity.Version, types.QEIdentityVersion)
	}
	if qeIdentity.ID != wantQEIdentityID {
		return types.TCBInfo{}, types.QEIdentity{}, fmt.Errorf("QE Identity was generated for a different TEE: expected %s, got %s", wantQEIdentityID, qeIdentity.ID)
	}

	return tcbInfo, qeIdentity, nil
}

// verifyIssuerChain parses a collateral issuer chain and verifies it against the trusted root.
// It returns the signing certificate, the first of the chain.
func verifyIssuerChain(
	name, chainPEM string, trustedRoot *x509.Certificate,
	rootCACRL *x509.RevocationList, verificationTime time.Time,
) (*x509.Certificate, error) {
	chain, err := crypto.ParsePEMCertificateChain([]byte(chainPEM))
	if err != nil {
		return nil, fmt.Errorf("parsing %s issuer chain: %w", name, err)
	}
	if len(chain) == 0 {
		return nil, fmt.Errorf("%s issuer chain contains no certificates", name)
	}
	if err := crypto.VerifyCertificateChain(chain, trustedRoot, []*x509.RevocationList{rootCACRL}, verificationTime); err != nil {
		return nil, fmt.Errorf("verifying %s issuer chain: %w", name, err)
	}
	return chain[0], nil
}

// staleCollateral names the collateral pieces past their next update at the verification time.
func staleCollateral(
	verificationTime time.Time, tcbInfo types.TCBInfo, qeIdentity types.QEIdentity,
	pckCRL, rootCACRL *x509.RevocationList,
) []string {
	var stale []string
	if verificationTime.After(rootCACRL.NextUpdate) {
		stale = append(stale, "Root CA CRL")
	}
	if verificationTime.After(pckCRL.NextUpdate) {
		stale = append(stale, "PCK CRL")
	}
	if verificationTime.After(tcbInfo.NextUpdate) {
		stale = append(stale, "TCB Info")
	}
	if verificationTime.After(qeIdentity.NextUpdate) {
		stale = append(stale, "QE Identity")
	}
	return stale
}

// parsePCKCertChain parses the PCK certificate chain embedded in a quote.
// The chain must have 3 certificates: PCK, PCK CA, and Root CA, leaf first.
func parsePCKCertChain(quote types.Quote) ([]*x509.Certificate, error) {
	certChain, err := crypto.ParseCertificates(quote.Signature.CertificationData.Certificates)
	if err != nil {
		return nil, fmt.Errorf("parsing PCK certificate chain: %w", err)
	}
	if len(certChain) != 3 {
		return nil, fmt.Errorf("PCK certificate chain must have 3 certificates, got %d", len(certChain))
	}
	return certChain, nil
}
