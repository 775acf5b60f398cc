package types

import (
	"encoding/json"
	"testing"

	"github.com/edgelesssys/go-dcap-qvl/blobs"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCollateralJSONRoundTrip(t *testing.T) {
	assert := assert.New(t)
	require := require.New(t)

	collateral := Collateral{
		PCKCRLIssuerChain:     blobs.PCKCRLIssuerChain,
		RootCACRL:             blobs.RootCACRL,
		PCKCRL:                blobs.PCKCRL,
		TCBInfoIssuerChain:    blobs.TCBInfoIssuerChain,
		RawTCBInfo:            json.RawMessage(`{"id":"TDX","version":3}`),
		TCBInfoSignature:      []byte{0x01, 0x02},
		QEIdentityIssuerChain: blobs.QEIdentityIssuerChain,
		RawQEIdentity:         json.RawMessage(`{"id":"TD_QE","version":2}`),
		QEIdentitySignature:   []byte{0x03, 0x04},
	}

	encoded, err := json.Marshal(collateral)
	require.NoError(err)

	var decoded Collateral
	require.NoError(json.Unmarshal(encoded, &decoded))

	assert.Equal(collateral, decoded)
	// The signed bytes must survive the round trip untouched.
	assert.Equal(string(collateral.RawTCBInfo), string(decoded.RawTCBInfo))
	assert.Equal(string(collateral.RawQEIdentity), string(decoded.RawQEIdentity))
}

func TestCollateralAccessors(t *testing.T) {
	assert := assert.New(t)
	require := require.New(t)

	var tcbEnvelope struct {
		TCBInfo json.RawMessage `json:"tcbInfo"`
	}
	require.NoError(json.Unmarshal(blobs.TCBInfoJSON, &tcbEnvelope))
	var qeEnvelope struct {
		QEIdentity json.RawMessage `json:"enclaveIdentity"`
	}
	require.NoError(json.Unmarshal(blobs.QEIdentityJSON, &qeEnvelope))

	collateral := Collateral{
		RawTCBInfo:    tcbEnvelope.TCBInfo,
		RawQEIdentity: qeEnvelope.QEIdentity,
	}

	tcbInfo, err := collateral.TCBInfo()
	require.NoError(err)
	assert.Equal(TCBInfoTDXID, tcbInfo.ID)

	qeIdentity, err := collateral.QEIdentity()
	require.NoError(err)
	assert.Equal(QEIdentityTDXID, qeIdentity.ID)

	broken := Collateral{RawTCBInfo: json.RawMessage(`{`), RawQEIdentity: json.RawMessage(`{`)}
	_, err = broken.TCBInfo()
	assert.Error(err)
	_, err = broken.QEIdentity()
	assert.Error(err)
}

func TestCollateralUnmarshalErrors(t *testing.T) {
	testCases := map[string]string{
		"not JSON":         `]`,
		"bad root CA CRL":  `{"root_ca_crl":"zz"}`,
		"bad PCK CRL":      `{"pck_crl":"zz"}`,
		"bad TCB Info sig": `{"tcb_info_signature":"zz"}`,
		"bad QE Identity":  `{"qe_identity_signature":"zz"}`,
	}

	for name, jsonRaw := range testCases {
		t.Run(name, func(t *testing.T) {
			assert := assert.New(t)
			var collateral Collateral
			assert.Error(json.Unmarshal([]byte(jsonRaw), &collateral))
		})
	}
}
