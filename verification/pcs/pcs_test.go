package pcs

import (
	"context"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"testing"
	"time"

	"github.com/edgelesssys/go-dcap-qvl/blobs"
	"github.com/edgelesssys/go-dcap-qvl/verification/types"
	"github.com/sirupsen/logrus"
	logtest "github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
	testclock "k8s.io/utils/clock/testing"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

func TestIntelRootCA(t *testing.T) {
	assert := assert.New(t)

	root := IntelRootCA()
	assert.Equal("Intel SGX Root CA", root.Subject.CommonName)
	assert.True(root.IsCA)
}

func TestGetPCKCRL(t *testing.T) {
	testCases := map[string]struct {
		api     *stubAPI
		caType  string
		wantErr bool
	}{
		"platform CA": {
			api: &stubAPI{responses: map[string]stubResponse{
				"sgx/certification/v4/pckcrl": {body: blobs.PCKCRL, issuerChain: blobs.PCKCRLIssuerChain},
			}},
			caType: PCKPlatformCA,
		},
		"request error": {
			api:     &stubAPI{},
			caType:  PCKPlatformCA,
			wantErr: true,
		},
		"CRL is not DER": {
			api: &stubAPI{responses: map[string]stubResponse{
				"sgx/certification/v4/pckcrl": {body: []byte("not a CRL")},
			}},
			caType:  PCKPlatformCA,
			wantErr: true,
		},
	}

	for name, tc := range testCases {
		t.Run(name, func(t *testing.T) {
			assert := assert.New(t)
			require := require.New(t)

			client := stubClient(tc.api)
			crl, issuerChain, err := client.GetPCKCRL(context.Background(), tc.caType)
			if tc.wantErr {
				assert.Error(err)
				return
			}
			require.NoError(err)
			assert.Equal(blobs.PCKCRL, crl)
			assert.Equal(blobs.PCKCRLIssuerChain, issuerChain)

			require.Len(tc.api.requests, 1)
			assert.Contains(tc.api.requests[0].RawQuery, "ca="+tc.caType)
			assert.Contains(tc.api.requests[0].RawQuery, "encoding=der")
		})
	}
}

func TestGetRootCACRL(t *testing.T) {
	hexCRL := []byte(hex.EncodeToString(blobs.RootCACRL))

	testCases := map[string]struct {
		api      *stubAPI
		endpoint string
		wantPath string
		wantErr  bool
	}{
		"DER from Intel's distribution point": {
			api: &stubAPI{responses: map[string]stubResponse{
				"/IntelSGXRootCA.der": {body: blobs.RootCACRL},
			}},
			wantPath: "/IntelSGXRootCA.der",
		},
		"hex encoded from a PCCS": {
			api: &stubAPI{responses: map[string]stubResponse{
				"/sgx/certification/v4/rootcacrl": {body: hexCRL},
			}},
			endpoint: "https://pccs.example:8081",
			wantPath: "/sgx/certification/v4/rootcacrl",
		},
		"request error": {
			api:     &stubAPI{},
			wantErr: true,
		},
		"CRL is not DER": {
			api: &stubAPI{responses: map[string]stubResponse{
				"/IntelSGXRootCA.der": {body: []byte("not a CRL")},
			}},
			wantErr: true,
		},
	}

	for name, tc := range testCases {
		t.Run(name, func(t *testing.T) {
			assert := assert.New(t)
			require := require.New(t)

			client := stubClient(tc.api)
			if tc.endpoint != "" {
				var err error
				client, err = NewWithEndpoint(tc.endpoint)
				require.NoError(err)
				client.api = tc.api
			}

			crl, err := client.GetRootCACRL(context.Background())
			if tc.wantErr {
				assert.Error(err)
				return
			}
			require.NoError(err)
			assert.Equal(blobs.RootCACRL, crl)

			require.Len(tc.api.requests, 1)
			assert.Equal(tc.wantPath, tc.api.requests[0].Path)
		})
	}
}

func TestGetTCBInfo(t *testing.T) {
	wantTCBInfo, wantSignature := splitEnvelope(t, blobs.TCBInfoJSON, "tcbInfo")

	testCases := map[string]struct {
		api      *stubAPI
		teeType  uint32
		wantPath string
		wantErr  bool
	}{
		"TDX": {
			api: &stubAPI{responses: map[string]stubResponse{
				"tdx/certification/v4/tcb": {body: blobs.TCBInfoJSON, issuerChain: blobs.TCBInfoIssuerChain},
			}},
			teeType:  uint32(types.TEETypeTDX),
			wantPath: "tdx/certification/v4/tcb",
		},
		"SGX": {
			api: &stubAPI{responses: map[string]stubResponse{
				"sgx/certification/v4/tcb": {body: blobs.TCBInfoJSON, issuerChain: blobs.TCBInfoIssuerChain},
			}},
			teeType:  uint32(types.TEETypeSGX),
			wantPath: "sgx/certification/v4/tcb",
		},
		"request error": {
			api:     &stubAPI{},
			teeType: uint32(types.TEETypeTDX),
			wantErr: true,
		},
		"response is not JSON": {
			api: &stubAPI{responses: map[string]stubResponse{
				"tdx/certification/v4/tcb": {body: []byte("not JSON")},
			}},
			teeType: uint32(types.TEETypeTDX),
			wantErr: true,
		},
		"signature is not hex": {
			api: &stubAPI{responses: map[string]stubResponse{
				"tdx/certification/v4/tcb": {body: []byte(`{"tcbInfo":{},"signature":"nothex"}`)},
			}},
			teeType: uint32(types.TEETypeTDX),
			wantErr: true,
		},
	}

	for name, tc := range testCases {
		t.Run(name, func(t *testing.T) {
			assert := assert.New(t)
			require := require.New(t)

			client := stubClient(tc.api)
			rawTCBInfo, signature, issuerChain, err := client.GetTCBInfo(context.Background(), tc.teeType, blobs.FMSPC)
			if tc.wantErr {
				assert.Error(err)
				return
			}
			require.NoError(err)
			assert.Equal(wantTCBInfo, rawTCBInfo)
			assert.Equal(wantSignature, signature)
			assert.Equal(blobs.TCBInfoIssuerChain, issuerChain)

			require.Len(tc.api.requests, 1)
			assert.Equal(tc.wantPath, tc.api.requests[0].Path)
			assert.Equal("fmspc="+fmt.Sprintf("%x", blobs.FMSPC), tc.api.requests[0].RawQuery)
		})
	}
}

func TestGetQEIdentity(t *testing.T) {
	wantQEIdentity, wantSignature := splitEnvelope(t, blobs.QEIdentityJSON, "enclaveIdentity")

	testCases := map[string]struct {
		api      *stubAPI
		teeType  uint32
		wantPath string
		wantErr  bool
	}{
		"TDX": {
			api: &stubAPI{responses: map[string]stubResponse{
				"tdx/certification/v4/qe/identity": {body: blobs.QEIdentityJSON, issuerChain: blobs.QEIdentityIssuerChain},
			}},
			teeType:  uint32(types.TEETypeTDX),
			wantPath: "tdx/certification/v4/qe/identity",
		},
		"SGX": {
			api: &stubAPI{responses: map[string]stubResponse{
				"sgx/certification/v4/qe/identity": {body: blobs.QEIdentityJSON, issuerChain: blobs.QEIdentityIssuerChain},
			}},
			teeType:  uint32(types.TEETypeSGX),
			wantPath: "sgx/certification/v4/qe/identity",
		},
		"request error": {
			api:     &stubAPI{},
			teeType: uint32(types.TEETypeTDX),
			wantErr: true,
		},
		"response is not JSON": {
			api: &stubAPI{responses: map[string]stubResponse{
				"tdx/certification/v4/qe/identity": {body: []byte("not JSON")},
			}},
			teeType: uint32(types.TEETypeTDX),
			wantErr: true,
		},
		"signature is not hex": {
			api: &stubAPI{responses: map[string]stubResponse{
				"tdx/certification/v4/qe/identity": {body: []byte(`{"enclaveIdentity":{},"signature":"nothex"}`)},
			}},
			teeType: uint32(types.TEETypeTDX),
			wantErr: true,
		},
	}

	for name, tc := range testCases {
		t.Run(name, func(t *testing.T) {
			assert := assert.New(t)
			require := require.New(t)

			client := stubClient(tc.api)
			rawQEIdentity, signature, issuerChain, err := client.GetQEIdentity(context.Background(), tc.teeType)
			if tc.wantErr {
				assert.Error(err)
				return
			}
			require.NoError(err)
			assert.Equal(wantQEIdentity, rawQEIdentity)
			assert.Equal(wantSignature, signature)
			assert.Equal(blobs.QEIdentityIssuerChain, issuerChain)

			require.Len(tc.api.requests, 1)
			assert.Equal(tc.wantPath, tc.api.requests[0].Path)
		})
	}
}

func TestGetCollateral(t *testing.T) {
	tdxResponses := map[string]stubResponse{
		"/IntelSGXRootCA.der":              {body: blobs.RootCACRL},
		"sgx/certification/v4/pckcrl":      {body: blobs.PCKCRL, issuerChain: blobs.PCKCRLIssuerChain},
		"tdx/certification/v4/tcb":         {body: blobs.TCBInfoJSON, issuerChain: blobs.TCBInfoIssuerChain},
		"tdx/certification/v4/qe/identity": {body: blobs.QEIdentityJSON, issuerChain: blobs.QEIdentityIssuerChain},
	}
	sgxResponses := map[string]stubResponse{
		"/IntelSGXRootCA.der":              {body: blobs.RootCACRL},
		"sgx/certification/v4/pckcrl":      {body: blobs.PCKCRL, issuerChain: blobs.PCKCRLIssuerChain},
		"sgx/certification/v4/tcb":         {body: blobs.SGXTCBInfoJSON, issuerChain: blobs.TCBInfoIssuerChain},
		"sgx/certification/v4/qe/identity": {body: blobs.SGXQEIdentityJSON, issuerChain: blobs.QEIdentityIssuerChain},
	}

	testCases := map[string]struct {
		rawQuote  []byte
		responses map[string]stubResponse
		wantErr   bool
	}{
		"TDX quote": {
			rawQuote:  blobs.TDXQuote(),
			responses: tdxResponses,
		},
		"SGX quote": {
			rawQuote:  blobs.SGXQuote(),
			responses: sgxResponses,
		},
		"quote is truncated": {
			rawQuote:  blobs.TDXQuote()[:47],
			responses: tdxResponses,
			wantErr:   true,
		},
		"request error": {
			rawQuote:  blobs.TDXQuote(),
			responses: nil,
			wantErr:   true,
		},
	}

	for name, tc := range testCases {
		t.Run(name, func(t *testing.T) {
			assert := assert.New(t)
			require := require.New(t)

			api := &stubAPI{responses: tc.responses}
			client := stubClient(api)
			collateral, err := client.GetCollateral(context.Background(), tc.rawQuote)
			if tc.wantErr {
				assert.Error(err)
				return
			}
			require.NoError(err)

			assert.Equal(blobs.RootCACRL, collateral.RootCACRL)
			assert.Equal(blobs.PCKCRL, collateral.PCKCRL)
			assert.Equal(blobs.PCKCRLIssuerChain, collateral.PCKCRLIssuerChain)
			assert.NotEmpty(collateral.RawTCBInfo)
			assert.NotEmpty(collateral.TCBInfoSignature)
			assert.Equal(blobs.TCBInfoIssuerChain, collateral.TCBInfoIssuerChain)
			assert.NotEmpty(collateral.RawQEIdentity)
			assert.NotEmpty(collateral.QEIdentitySignature)
			assert.Equal(blobs.QEIdentityIssuerChain, collateral.QEIdentityIssuerChain)
			assert.Len(api.requests, 4)

			tcbInfo, err := collateral.TCBInfo()
			require.NoError(err)
			assert.Equal(blobs.FMSPC, tcbInfo.FMSPC)
		})
	}
}

func TestGetCollateralWarnsIfStale(t *testing.T) {
	assert := assert.New(t)
	require := require.New(t)

	api := &stubAPI{responses: map[string]stubResponse{
		"/IntelSGXRootCA.der":              {body: blobs.RootCACRL},
		"sgx/certification/v4/pckcrl":      {body: blobs.PCKCRL, issuerChain: blobs.PCKCRLIssuerChain},
		"tdx/certification/v4/tcb":         {body: blobs.TCBInfoJSON, issuerChain: blobs.TCBInfoIssuerChain},
		"tdx/certification/v4/qe/identity": {body: blobs.QEIdentityJSON, issuerChain: blobs.QEIdentityIssuerChain},
	}}
	logger, hook := logtest.NewNullLogger()
	client := New(
		WithClock(testclock.NewFakePassiveClock(blobs.CollateralNextUpdate.Add(time.Hour))),
		WithLogger(logger),
	)
	client.api = api

	_, err := client.GetCollateral(context.Background(), blobs.TDXQuote())
	require.NoError(err)

	var warnings []string
	for _, entry := range hook.AllEntries() {
		if entry.Level == logrus.WarnLevel {
			warnings = append(warnings, entry.Message)
		}
	}
	assert.Len(warnings, 2)
}

func TestNewWithEndpoint(t *testing.T) {
	testCases := map[string]struct {
		endpoint string
		wantErr  bool
	}{
		"PCCS URL":            {endpoint: "https://pccs.example:8081"},
		"URL with path":       {endpoint: "https://pccs.example:8081/proxy"},
		"missing scheme":      {endpoint: "pccs.example:8081", wantErr: true},
		"not a URL":           {endpoint: "://", wantErr: true},
		"empty":               {endpoint: "", wantErr: true},
		"scheme without host": {endpoint: "https://", wantErr: true},
	}

	for name, tc := range testCases {
		t.Run(name, func(t *testing.T) {
			assert := assert.New(t)

			client, err := NewWithEndpoint(tc.endpoint)
			if tc.wantErr {
				assert.Error(err)
				return
			}
			assert.NoError(err)
			assert.Equal(tc.endpoint, client.endpoint.String())
		})
	}
}

func TestCATypeFromIssuer(t *testing.T) {
	testCases := map[string]struct {
		issuer  string
		want    string
		wantErr bool
	}{
		"platform CA":  {issuer: "Intel SGX PCK Platform CA", want: PCKPlatformCA},
		"processor CA": {issuer: "Intel SGX PCK Processor CA", want: PCKProcessorCA},
		"unknown CA":   {issuer: "Intel SGX Root CA", wantErr: true},
	}

	for name, tc := range testCases {
		t.Run(name, func(t *testing.T) {
			assert := assert.New(t)

			caType, err := caTypeFromIssuer(tc.issuer)
			if tc.wantErr {
				assert.Error(err)
				return
			}
			assert.NoError(err)
			assert.Equal(tc.want, caType)
		})
	}
}

func TestIssuerChainFromCertHeader(t *testing.T) {
	testCases := map[string]struct {
		header  string
		want    string
		wantErr bool
	}{
		"URL encoded chain": {
			header: url.QueryEscape(blobs.PCKCRLIssuerChain),
			want:   blobs.PCKCRLIssuerChain,
		},
		"empty header": {
			header:  "",
			wantErr: true,
		},
		"invalid escape": {
			header:  "%zz",
			wantErr: true,
		},
	}

	for name, tc := range testCases {
		t.Run(name, func(t *testing.T) {
			assert := assert.New(t)

			chain, err := issuerChainFromCertHeader(tc.header)
			if tc.wantErr {
				assert.Error(err)
				return
			}
			assert.NoError(err)
			assert.Equal(tc.want, chain)
		})
	}
}

// stubClient returns a client with the HTTP layer replaced by the given stub.
func stubClient(api *stubAPI) *TrustedServicesClient {
	client := New(WithClock(testclock.NewFakePassiveClock(blobs.PCSIssueDate)))
	client.api = api
	return client
}

type stubAPI struct {
	responses map[string]stubResponse
	requests  []*url.URL
}

type stubResponse struct {
	body        []byte
	issuerChain string
}

func (s *stubAPI) getFromPCS(_ context.Context, uri *url.URL, certHeader string) ([]byte, string, error) {
	s.requests = append(s.requests, uri)
	resp, ok := s.responses[uri.Path]
	if !ok {
		return nil, "", fmt.Errorf("request failed with status 404 Not Found: %s", uri)
	}
	if certHeader == "" {
		return resp.body, "", nil
	}
	if resp.issuerChain == "" {
		return nil, "", errors.New("response carries no issuer chain header")
	}
	return resp.body, resp.issuerChain, nil
}

// splitEnvelope extracts the signed body under key and the signature from a PCS
// response envelope the same way the client does.
func splitEnvelope(t *testing.T, envelope []byte, key string) (json.RawMessage, []byte) {
	t.Helper()
	require := require.New(t)

	var fields map[string]json.RawMessage
	require.NoError(json.Unmarshal(envelope, &fields))

	var signatureHex string
	require.NoError(json.Unmarshal(fields["signature"], &signatureHex))
	signature, err := hex.DecodeString(signatureHex)
	require.NoError(err)

	return fields[key], signature
}
