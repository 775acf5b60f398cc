package verification

import (
	"errors"
	"fmt"

	"github.com/edgelesssys/go-dcap-qvl/verification/status"
	"github.com/edgelesssys/go-dcap-qvl/verification/types"
)

var (
	// ErrFMSPCMismatch is returned when the TCB Info is for a different platform model
	// than the PCK certificate.
	ErrFMSPCMismatch = errors.New("FMSPC of PCK certificate does not match TCB Info")

	// ErrPCEIDMismatch is returned when the TCB Info is for a different PCE
	// than the PCK certificate.
	ErrPCEIDMismatch = errors.New("PCEID of PCK certificate does not match TCB Info")

	// ErrTCBLevelNotFound is returned when no TCB level of the TCB Info is at or below
	// the platform's TCB.
	ErrTCBLevelNotFound = errors.New("no TCB level in TCB Info matches the platform TCB")

	// ErrQETCBLevelNotFound is returned when no TCB level of the QE Identity is at or below
	// the QE's ISV SVN.
	ErrQETCBLevelNotFound = errors.New("no TCB level in QE Identity matches the QE report")

	// ErrTDXModuleMismatch is returned when the TDX module measurements of a TD report
	// do not match the TCB Info.
	ErrTDXModuleMismatch = errors.New("TDX module does not match TCB Info")

	// ErrQEIdentityMismatch is returned when the QE report does not match the QE Identity.
	ErrQEIdentityMismatch = errors.New("QE report does not match QE Identity")
)

// tcbEvaluation is the outcome of matching a quote against TCB Info and QE Identity.
type tcbEvaluation struct {
	Status      status.TCBStatus
	AdvisoryIDs []string
}

// evaluateTCB matches the platform TCB from the PCK certificate and the quote
// against the TCB Info, and the QE report against the QE Identity. The returned
// status combines the matched platform and QE TCB levels, taking the worse of the two.
//
// TCB levels are tried in the order served by the PCS, newest first: a level matches
// if the platform's SVNs are at or above the level's in every component. Advisory IDs
// are taken from the level that determined the status, or from both levels if they
// are equally severe.
func evaluateTCB(quote types.Quote, pckExtensions types.SGXExtensions, tcbInfo types.TCBInfo, qeIdentity types.QEIdentity) (tcbEvaluation, error) {
	if pckExtensions.FMSPC != tcbInfo.FMSPC {
		return tcbEvaluation{}, fmt.Errorf("%w: %x (TCB Info is for %x)", ErrFMSPCMismatch, pckExtensions.FMSPC, tcbInfo.FMSPC)
	}
	if pckExtensions.PCEID != tcbInfo.PCEID {
		return tcbEvaluation{}, fmt.Errorf("%w: %x (TCB Info is for %x)", ErrPCEIDMismatch, pckExtensions.PCEID, tcbInfo.PCEID)
	}
	if quote.Header.VendorID != types.IntelQEVendorID {
		return tcbEvaluation{}, fmt.Errorf("%w: unexpected QE vendor ID %x", ErrQEIdentityMismatch, quote.Header.VendorID)
	}

	isTDX := quote.Header.TEEType == types.TEETypeTDX
	var tdxTCBSVN [16]byte
	if isTDX {
		tdReport, ok := tdReportOf(quote.Body)
		if !ok {
			return tcbEvaluation{}, fmt.Errorf("quote has TEE type TDX but report body type %T", quote.Body)
		}
		if err := matchTDXModule(tdReport, tcbInfo.TDXModule); err != nil {
			return tcbEvaluation{}, err
		}
		tdxTCBSVN = tdReport.TCBSVN
	}

	platformLevel, err := matchPlatformTCBLevel(pckExtensions.TCB, tcbInfo.TCBLevels, isTDX, tdxTCBSVN)
	if err != nil {
		return tcbEvaluation{}, err
	}

	if err := matchQEIdentity(quote.Signature.QEReport, qeIdentity); err != nil {
		return tcbEvaluation{}, err
	}
	qeLevel, err := matchQETCBLevel(quote.Signature.QEReport, qeIdentity)
	if err != nil {
		return tcbEvaluation{}, err
	}

	return combineTCBLevels(platformLevel, qeLevel), nil
}

// tdReportOf returns the TDX 1.0 view of a TDX report body.
func tdReportOf(body types.ReportBody) (types.TDReport10, bool) {
	switch report := body.(type) {
	case types.TDReport10:
		return report, true
	case types.TDReport15:
		return report.TDReport10, true
	default:
		return types.TDReport10{}, false
	}
}

// matchTDXModule checks the TD report's SEAM measurements against the TCB Info's TDX module.
func matchTDXModule(report types.TDReport10, module types.TDXModule) error {
	if report.MRSIGNERSEAM != module.MRSIGNERSEAM {
		return fmt.Errorf("%w: MRSIGNERSEAM %x (expected %x)", ErrTDXModuleMismatch, report.MRSIGNERSEAM, module.MRSIGNERSEAM)
	}
	if report.SEAMAttributes&module.SEAMAttributesMask != module.SEAMAttributes {
		return fmt.Errorf("%w: SEAMAttributes %#x (expected %#x under mask %#x)", ErrTDXModuleMismatch, report.SEAMAttributes, module.SEAMAttributes, module.SEAMAttributesMask)
	}
	return nil
}

// matchPlatformTCBLevel returns the first TCB level the platform TCB is at or above.
func matchPlatformTCBLevel(pckTCB types.PCKTCB, levels []types.TCBLevel, isTDX bool, tdxTCBSVN [16]byte) (types.TCBLevel, error) {
	for _, level := range levels {
		if !sgxComponentsAtOrAbove(pckTCB, level.TCB) {
			continue
		}
		if isTDX && !tdxComponentsAtOrAbove(tdxTCBSVN, level.TCB) {
			continue
		}
		return level, nil
	}
	return types.TCBLevel{}, fmt.Errorf("%w: PCK TCB SVNs %v, PCESVN %d", ErrTCBLevelNotFound, pckTCB.TCBSVN, pckTCB.PCESVN)
}

// sgxComponentsAtOrAbove reports whether the PCK TCB reaches the level's
// SGX component SVNs and PCESVN.
func sgxComponentsAtOrAbove(pckTCB types.PCKTCB, level types.TCB) bool {
	for i, component := range level.SGXTCBComponents {
		if pckTCB.TCBSVN[i] < int(component.SVN) {
			return false
		}
	}
	return pckTCB.PCESVN >= uint32(level.PCESVN)
}

// tdxComponentsAtOrAbove reports whether the TD report's TCB SVNs reach the level's
// TDX component SVNs.
func tdxComponentsAtOrAbove(tcbSVN [16]byte, level types.TCB) bool {
	for i, component := range level.TDXTCBComponents {
		if tcbSVN[i] < component.SVN {
			return false
		}
	}
	return true
}

// matchQEIdentity checks the QE report against the expected QE identity fields.
func matchQEIdentity(qeReport types.EnclaveReport, qeIdentity types.QEIdentity) error {
	if qeReport.MiscSelect&qeIdentity.MiscSelectMask != qeIdentity.MiscSelect {
		return fmt.Errorf("%w: MISCSELECT %#x (expected %#x under mask %#x)", ErrQEIdentityMismatch, qeReport.MiscSelect, qeIdentity.MiscSelect, qeIdentity.MiscSelectMask)
	}
	for i := range qeReport.Attributes {
		if qeReport.Attributes[i]&qeIdentity.AttributesMask[i] != qeIdentity.Attributes[i] {
			return fmt.Errorf("%w: attributes %x (expected %x under mask %x)", ErrQEIdentityMismatch, qeReport.Attributes, qeIdentity.Attributes, qeIdentity.AttributesMask)
		}
	}
	if qeReport.MRSIGNER != qeIdentity.MRSIGNER {
		return fmt.Errorf("%w: MRSIGNER %x (expected %x)", ErrQEIdentityMismatch, qeReport.MRSIGNER, qeIdentity.MRSIGNER)
	}
	if qeReport.ISVProdID != qeIdentity.ISVProdID {
		return fmt.Errorf("%w: ISVProdID %d (expected %d)", ErrQEIdentityMismatch, qeReport.ISVProdID, qeIdentity.ISVProdID)
	}
	return nil
}

// matchQETCBLevel returns the first TCB level of the QE Identity the QE's ISV SVN is at or above.
func matchQETCBLevel(qeReport types.EnclaveReport, qeIdentity types.QEIdentity) (types.TCBLevel, error) {
	for _, level := range qeIdentity.TCBLevels {
		if qeReport.ISVSVN >= level.TCB.ISVSVN {
			return level, nil
		}
	}
	return types.TCBLevel{}, fmt.Errorf("%w: ISVSVN %d", ErrQETCBLevelNotFound, qeReport.ISVSVN)
}

// combineTCBLevels combines the matched platform and QE TCB levels into the final
// status, the worse of the two. Advisory IDs come from the level that determined
// the status, or from both on a tie.
func combineTCBLevels(platformLevel, qeLevel types.TCBLevel) tcbEvaluation {
	evaluation := tcbEvaluation{
		Status: status.WorseOf(platformLevel.TCBStatus, qeLevel.TCBStatus),
	}
	switch platformSeverity, qeSeverity := platformLevel.TCBStatus.Severity(), qeLevel.TCBStatus.Severity(); {
	case platformSeverity > qeSeverity:
		evaluation.AdvisoryIDs = platformLevel.AdvisoryIDs
	case qeSeverity > platformSeverity:
		evaluation.AdvisoryIDs = qeLevel.AdvisoryIDs
	default:
		evaluation.AdvisoryIDs = mergeAdvisoryIDs(platformLevel.AdvisoryIDs, qeLevel.AdvisoryIDs)
	}
	return evaluation
}

// mergeAdvisoryIDs merges two advisory ID lists, dropping duplicates and keeping order.
func mergeAdvisoryIDs(a, b []string) []string {
	if len(a) == 0 {
		return b
	}
	merged := append([]string{}, a...)
	for _, id := range b {
		seen := false
		for _, existing := range merged {
			if existing == id {
				seen = true
				break
			}
		}
		if !seen {
			merged = append(merged, id)
		}
	}
	return merged
}
