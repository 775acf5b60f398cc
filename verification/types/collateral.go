package types

import (
	"encoding/hex"
	"encoding/json"
	"fmt"
)

// Collateral is the verification collateral for a quote: the TCB Info and
// QE Identity structures with their signatures and signing certificate chains,
// and the CRLs of the PCK certificate hierarchy. It is fetched from Intel PCS
// or a PCCS, or loaded from a file for offline verification.
type Collateral struct {
	// PCKCRLIssuerChain is the PEM certificate chain that signed PCKCRL.
	PCKCRLIssuerChain string
	// RootCACRL is the DER encoded CRL issued by the Intel SGX Root CA.
	RootCACRL []byte
	// PCKCRL is the DER encoded CRL issued by the PCK CA that issued the quote's PCK certificate.
	PCKCRL []byte
	// TCBInfoIssuerChain is the PEM certificate chain that signed RawTCBInfo.
	TCBInfoIssuerChain string
	// RawTCBInfo is the JSON value of the tcbInfo field as served by the PCS.
	// The signature covers these exact bytes.
	RawTCBInfo json.RawMessage
	// TCBInfoSignature is the ECDSA-P256 signature over RawTCBInfo in raw r||s form.
	TCBInfoSignature []byte
	// QEIdentityIssuerChain is the PEM certificate chain that signed RawQEIdentity.
	QEIdentityIssuerChain string
	// RawQEIdentity is the JSON value of the enclaveIdentity field as served by the PCS.
	// The signature covers these exact bytes.
	RawQEIdentity json.RawMessage
	// QEIdentitySignature is the ECDSA-P256 signature over RawQEIdentity in raw r||s form.
	QEIdentitySignature []byte
}

// TCBInfo parses the raw TCB Info held in the collateral.
func (c *Collateral) TCBInfo() (TCBInfo, error) {
	var tcbInfo TCBInfo
	if err := json.Unmarshal(c.RawTCBInfo, &tcbInfo); err != nil {
		return TCBInfo{}, fmt.Errorf("unmarshaling TCB Info: %w", err)
	}
	return tcbInfo, nil
}

// QEIdentity parses the raw QE Identity held in the collateral.
func (c *Collateral) QEIdentity() (QEIdentity, error) {
	var qeIdentity QEIdentity
	if err := json.Unmarshal(c.RawQEIdentity, &qeIdentity); err != nil {
		return QEIdentity{}, fmt.Errorf("unmarshaling QE Identity: %w", err)
	}
	return qeIdentity, nil
}

// collateralJSON is the JSON representation of Collateral.
// Binary fields are hex encoded, the TCB Info and QE Identity JSON values are
// carried as strings so their exact signed bytes survive the round trip.
type collateralJSON struct {
	PCKCRLIssuerChain     string `json:"pck_crl_issuer_chain"`
	RootCACRL             string `json:"root_ca_crl"`
	PCKCRL                string `json:"pck_crl"`
	TCBInfoIssuerChain    string `json:"tcb_info_issuer_chain"`
	TCBInfo               string `json:"tcb_info"`
	TCBInfoSignature      string `json:"tcb_info_signature"`
	QEIdentityIssuerChain string `json:"qe_identity_issuer_chain"`
	QEIdentity            string `json:"qe_identity"`
	QEIdentitySignature   string `json:"qe_identity_signature"`
}

// MarshalJSON encodes the collateral with hex encoded binary fields.
func (c Collateral) MarshalJSON() ([]byte, error) {
	return json.Marshal(collateralJSON{
		PCKCRLIssuerChain:     c.PCKCRLIssuerChain,
		RootCACRL:             hex.EncodeToString(c.RootCACRL),
		PCKCRL:                hex.EncodeToString(c.PCKCRL),
		TCBInfoIssuerChain:    c.TCBInfoIssuerChain,
		TCBInfo:               string(c.RawTCBInfo),
		TCBInfoSignature:      hex.EncodeToString(c.TCBInfoSignature),
		QEIdentityIssuerChain: c.QEIdentityIssuerChain,
		QEIdentity:            string(c.RawQEIdentity),
		QEIdentitySignature:   hex.EncodeToString(c.QEIdentitySignature),
	})
}

// UnmarshalJSON parses a JSON representation of the collateral as produced by MarshalJSON.
func (c *Collateral) UnmarshalJSON(data []byte) error {
	var collateral collateralJSON
	if err := json.Unmarshal(data, &collateral); err != nil {
		return fmt.Errorf("unmarshaling collateral JSON: %w", err)
	}

	rootCACRL, err := hex.DecodeString(collateral.RootCACRL)
	if err != nil {
		return fmt.Errorf("decoding root CA CRL: %w", err)
	}
	pckCRL, err := hex.DecodeString(collateral.PCKCRL)
	if err != nil {
		return fmt.Errorf("decoding PCK CRL: %w", err)
	}
	tcbInfoSignature, err := hex.DecodeString(collateral.TCBInfoSignature)
	if err != nil {
		return fmt.Errorf("decoding TCB Info signature: %w", err)
	}
	qeIdentitySignature, err := hex.DecodeString(collateral.QEIdentitySignature)
	if err != nil {
		return fmt.Errorf("decoding QE Identity signature: %w", err)
	}

	c.PCKCRLIssuerChain = collateral.PCKCRLIssuerChain
	c.RootCACRL = rootCACRL
	c.PCKCRL = pckCRL
	c.TCBInfoIssuerChain = collateral.TCBInfoIssuerChain
	c.RawTCBInfo = json.RawMessage(collateral.TCBInfo)
	c.TCBInfoSignature = tcbInfoSignature
	c.QEIdentityIssuerChain = collateral.QEIdentityIssuerChain
	c.RawQEIdentity = json.RawMessage(collateral.QEIdentity)
	c.QEIdentitySignature = qeIdentitySignature

	return nil
}
