package types

import (
	"encoding/binary"
	"encoding/hex"
	"encoding/pem"
	"strings"
	"testing"

	"github.com/edgelesssys/go-dcap-qvl/blobs"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseQuote(t *testing.T) {
	assert := assert.New(t)
	require := require.New(t)

	rawQuote := blobs.TDXQuote()

	parsedQuote, err := ParseQuote(rawQuote)
	require.NoError(err)

	// Check header
	assert.EqualValues(QuoteVersion4, parsedQuote.Header.Version)
	assert.EqualValues(AttestationKeyECDSAP256, parsedQuote.Header.AttestationKeyType)
	assert.EqualValues(TEETypeTDX, parsedQuote.Header.TEEType)
	assert.Equal(IntelQEVendorID, parsedQuote.Header.VendorID)

	// Check TDReport data
	body, ok := parsedQuote.Body.(TDReport10)
	require.True(ok)
	cleanReportData := strings.ReplaceAll(string(body.ReportData[:]), "\x00", "")
	assert.Equal("Hello from Edgeless Systems!", cleanReportData)

	// Check hard-coded MRSIGNER
	qeReport := parsedQuote.Signature.QEReport
	assert.EqualValues(strings.ToLower("DC9E2A7C6F948F17474E34A7FC43ED030F7C1563F1BABDDF6340C82E0E54A8C5"), hex.EncodeToString(qeReport.MRSIGNER[:]))

	// Check QEAuthData
	expectedData := make([]byte, 32)
	for i := 0; i < 32; i++ {
		expectedData[i] = byte(i)
	}
	assert.Equal(expectedData, parsedQuote.Signature.QEAuthData.Data)

	// Check if PEM chain is valid
	require.Len(parsedQuote.Signature.CertificationData.Certificates, 3)
	pemChain := parsedQuote.Signature.CertificationData.Data
	block, rest := pem.Decode(pemChain)
	assert.NotEmpty(block)
	assert.NotEmpty(rest)
	block, rest = pem.Decode(rest)
	assert.NotEmpty(block)
	assert.NotEmpty(rest)
	block, rest = pem.Decode(rest)
	assert.NotEmpty(block)
	assert.Equal([]byte{0x0}, rest) // C terminated string with 0x0 byte
}

func TestParseQuoteVersions(t *testing.T) {
	testCases := map[string]struct {
		rawQuote    []byte
		wantVersion uint16
		wantTEEType uint32
		wantBody    ReportBody
	}{
		"version 3 SGX": {
			rawQuote:    blobs.SGXQuote(),
			wantVersion: QuoteVersion3,
			wantTEEType: TEETypeSGX,
			wantBody:    EnclaveReport{},
		},
		"version 4 SGX": {
			rawQuote:    blobs.SGXQuoteV4(),
			wantVersion: QuoteVersion4,
			wantTEEType: TEETypeSGX,
			wantBody:    EnclaveReport{},
		},
		"version 4 TDX": {
			rawQuote:    blobs.TDXQuote(),
			wantVersion: QuoteVersion4,
			wantTEEType: TEETypeTDX,
			wantBody:    TDReport10{},
		},
		"version 5 TDX 1.5": {
			rawQuote:    blobs.TDXQuoteV5(),
			wantVersion: QuoteVersion5,
			wantTEEType: TEETypeTDX,
			wantBody:    TDReport15{},
		},
	}

	for name, tc := range testCases {
		t.Run(name, func(t *testing.T) {
			assert := assert.New(t)
			require := require.New(t)

			parsedQuote, err := ParseQuote(tc.rawQuote)
			require.NoError(err)

			assert.Equal(tc.wantVersion, parsedQuote.Header.Version)
			assert.Equal(tc.wantTEEType, parsedQuote.Header.TEEType)
			assert.IsType(tc.wantBody, parsedQuote.Body)
			assert.Len(parsedQuote.Signature.CertificationData.Certificates, 3)
		})
	}
}

func TestParseQuoteErrors(t *testing.T) {
	testCases := map[string]struct {
		quote   func() []byte
		mutate  func([]byte) []byte
		wantErr error
	}{
		"truncated header": {
			mutate:  func(raw []byte) []byte { return raw[:47] },
			wantErr: ErrTruncatedQuote,
		},
		"over quote size limit": {
			mutate:  func(raw []byte) []byte { return append(raw, make([]byte, 1048577)...) },
			wantErr: ErrQuoteTooLarge,
		},
		"unsupported version": {
			mutate:  patchUint16(0, 6),
			wantErr: ErrUnsupportedVersion,
		},
		"unsupported attestation key type": {
			mutate:  patchUint16(2, 1),
			wantErr: ErrUnsupportedAttestationKeyType,
		},
		"unknown TEE type": {
			mutate:  patchUint32(4, 0x42),
			wantErr: ErrUnsupportedTEEType,
		},
		"TDX TEE type in version 3 quote": {
			quote:   blobs.SGXQuote,
			mutate:  patchUint32(4, TEETypeTDX),
			wantErr: ErrUnsupportedTEEType,
		},
		"truncated report body": {
			mutate:  func(raw []byte) []byte { return raw[:400] },
			wantErr: ErrTruncatedQuote,
		},
		"truncated signature length": {
			mutate:  func(raw []byte) []byte { return raw[:633] },
			wantErr: ErrTruncatedQuote,
		},
		"signature length past quote end": {
			mutate:  patchUint32(632, 0xffffffff),
			wantErr: ErrTruncatedQuote,
		},
		"trailing data": {
			mutate:  func(raw []byte) []byte { return append(raw, 0x0) },
			wantErr: ErrTrailingData,
		},
		"signature section too short": {
			mutate: func(raw []byte) []byte {
				binary.LittleEndian.PutUint32(raw[632:636], 10)
				return raw[:646]
			},
			wantErr: ErrTruncatedQuote,
		},
		"wrong certification data envelope type": {
			mutate:  patchUint16(764, PCK_ID_PCK_CERT_CHAIN),
			wantErr: ErrUnsupportedCertificationData,
		},
		"certification data envelope size mismatch": {
			mutate: func(raw []byte) []byte {
				declared := binary.LittleEndian.Uint32(raw[766:770])
				binary.LittleEndian.PutUint32(raw[766:770], declared+1)
				return raw
			},
			wantErr: ErrTruncatedQuote,
		},
		"QE auth data size past section end": {
			mutate:  patchUint16(1218, 0xffff),
			wantErr: ErrTruncatedQuote,
		},
		"wrong PCK certification data type": {
			mutate:  patchUint16(1252, PCK_ID_QE_REPORT_CERTIFICATION_DATA),
			wantErr: ErrUnsupportedCertificationData,
		},
		"PCK certification data size mismatch": {
			mutate: func(raw []byte) []byte {
				declared := binary.LittleEndian.Uint32(raw[1254:1258])
				binary.LittleEndian.PutUint32(raw[1254:1258], declared+1)
				return raw
			},
			wantErr: ErrTruncatedQuote,
		},
		"garbage instead of PEM chain": {
			mutate: func(raw []byte) []byte {
				for i := 1258; i < len(raw)-1; i++ {
					raw[i] = 'A'
				}
				return raw
			},
			wantErr: ErrMalformedCertificationData,
		},
		"version 5 unknown body type": {
			quote:   blobs.TDXQuoteV5,
			mutate:  patchUint16(48, 9),
			wantErr: ErrInvalidBodyDescriptor,
		},
		"version 5 body size mismatch": {
			quote:   blobs.TDXQuoteV5,
			mutate:  patchUint32(50, 584),
			wantErr: ErrInvalidBodyDescriptor,
		},
		"version 5 body type inconsistent with TEE type": {
			quote:   blobs.TDXQuoteV5,
			mutate:  patchUint32(4, TEETypeSGX),
			wantErr: ErrInvalidBodyDescriptor,
		},
	}

	for name, tc := range testCases {
		t.Run(name, func(t *testing.T) {
			assert := assert.New(t)

			quote := blobs.TDXQuote
			if tc.quote != nil {
				quote = tc.quote
			}

			_, err := ParseQuote(tc.mutate(quote()))
			assert.ErrorIs(err, tc.wantErr)
		})
	}
}

func patchUint16(offset int, value uint16) func([]byte) []byte {
	return func(raw []byte) []byte {
		binary.LittleEndian.PutUint16(raw[offset:offset+2], value)
		return raw
	}
}

func patchUint32(offset int, value uint32) func([]byte) []byte {
	return func(raw []byte) []byte {
		binary.LittleEndian.PutUint32(raw[offset:offset+4], value)
		return raw
	}
}

func FuzzParseQuote(f *testing.F) {
	f.Add(blobs.TDXQuote())
	f.Add(blobs.TDXQuoteV5())
	f.Add(blobs.SGXQuote())
	f.Add(blobs.SGXQuoteV4())
	f.Fuzz(func(t *testing.T, a []byte) {
		assert := assert.New(t)
		assert.NotPanics(func() { _, _ = ParseQuote(a) })
	})
}

func FuzzParseSignature(f *testing.F) {
	f.Fuzz(func(t *testing.T, a []byte, version uint16) {
		assert := assert.New(t)
		assert.NotPanics(func() { _, _ = parseSignature(a, version) })
	})
}

func FuzzParseQEReportCertificationData(f *testing.F) {
	f.Fuzz(func(t *testing.T, a []byte) {
		assert := assert.New(t)
		assert.NotPanics(func() { _, _ = parseQEReportCertificationData(a) })
	})
}

func FuzzParseCertificationData(f *testing.F) {
	f.Fuzz(func(t *testing.T, a []byte) {
		assert := assert.New(t)
		assert.NotPanics(func() { _, _ = parseCertificationData(a) })
	})
}
