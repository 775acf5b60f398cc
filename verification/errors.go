package verification

import "fmt"

// Step names the verification step a VerificationError originated from.
type Step string

// The verification steps, in the order the verifier runs them.
const (
	// StepParseQuote covers parsing the binary quote.
	StepParseQuote Step = "parse quote"

	// StepVerifyPCKChain covers parsing and verifying the PCK certificate chain
	// embedded in the quote, including revocation checks.
	StepVerifyPCKChain Step = "verify PCK certificate chain"

	// StepVerifySignatures covers the quote signature chain: the attestation key
	// signature over the quote, the PCK signature over the QE report, and the
	// binding of the attestation key to the QE report.
	StepVerifySignatures Step = "verify quote signatures"

	// StepVerifyCollateral covers verifying the collateral's certificate chains,
	// signatures, and identity fields.
	StepVerifyCollateral Step = "verify collateral"

	// StepEvaluateTCB covers matching the platform and QE TCB against the collateral.
	StepEvaluateTCB Step = "evaluate TCB level"
)

// VerificationError is the error type returned by quote verification.
// It names the step that failed, the wrapped error tells why.
type VerificationError struct {
	Step Step
	Err  error
}

// Error implements the error interface.
func (e *VerificationError) Error() string {
	return fmt.Sprintf("verifying quote: %s: %s", e.Step, e.Err)
}

// Unwrap returns the underlying error.
func (e *VerificationError) Unwrap() error {
	return e.Err
}
