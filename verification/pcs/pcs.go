/*
Package pcs retrieves verification collateral from Intel's PCS or a PCCS.

The following information is retrieved:
  - TCB Info
  - QE Identity
  - PCK CRL and its issuer chain
  - Root CA CRL

The retrieved data forms the collateral the verification package checks against
the Intel SGX/TDX certificate hierarchy:

	    	                 ┌───────────────┐
	    	                 │ Intel Root CA │
	    	                 └───────┬───────┘
	    	                         │
	    	                       Signs
	    	                         │
	        ┌────────────────────────┼───────────────────────┐────────────────────────┐
	        │                        │                       │                        │
	        ▼                        ▼                       ▼                        ▼
	┌───────────────┐      ┌──────────────────┐      ┌──────────────────┐       ┌───────────────────┐
	│  PCK CA Cert  │◄──┐  │ TCB Signing Cert │◄──┐  │ QE  Signing Cert │◄──┬───┤ Intel Root CA CRL │
	└───────┬───────┘   │  └──────────────────┘   │  └──────────────────┘   │   └───────────────────┘
		    │           │                         │                         │
	      Signs         └─────────────────────────└─────────────────────────┘
	        │                                                          Revokes
	        ├────────────────────┐
	        │                    │
	        ▼                    ▼
	  ┌──────────┐          ┌─────────┐
	  │ PCK Cert │◄─────────┤ PCK CRL │
	  └──────────┘  Revokes └─────────┘

Intel Root CA is hard-coded in this package and exposed via [IntelRootCA] as the
default trust anchor for verification.

The TCB Info, QE Identity, and PCK CRL responses carry their issuer chains in
response headers. The client passes them through in the collateral so the
verifier can check them against the trust anchor of the caller's choosing.
*/
package pcs

import (
	"context"
	"crypto/x509"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"path"
	"time"

	"github.com/edgelesssys/go-dcap-qvl/verification/crypto"
	"github.com/edgelesssys/go-dcap-qvl/verification/types"
	"github.com/sirupsen/logrus"
	"k8s.io/utils/clock"
)

const (
	// PCKPlatformCA is used to retrieve the CRL of the PCK Platform CA.
	PCKPlatformCA = "platform"

	// PCKProcessorCA is used to retrieve the CRL of the PCK Processor CA.
	PCKProcessorCA = "processor"

	// rootCA is the PEM encoded Intel SGX/TDX Root CA Certificate.
	rootCA = "-----BEGIN CERTIFICATE-----\nMIICjzCCAjSgAwIBAgIUImUM1lqdNInzg7SVUr9QGzknBqwwCgYIKoZIzj0EAwIw\naDEaMBgGA1UEAwwRSW50ZWwgU0dYIFJvb3QgQ0ExGjAYBgNVBAoMEUludGVsIENv\ncnBvcmF0aW9uMRQwEgYDVQQHDAtTYW50YSBDbGFyYTELMAkGA1UECAwCQ0ExCzAJ\nBgNVBAYTAlVTMB4XDTE4MDUyMTEwNDUxMFoXDTQ5MTIzMTIzNTk1OVowaDEaMBgG\nA1UEAwwRSW50ZWwgU0dYIFJvb3QgQ0ExGjAYBgNVBAoMEUludGVsIENvcnBvcmF0\naW9uMRQwEgYDVQQHDAtTYW50YSBDbGFyYTELMAkGA1UECAwCQ0ExCzAJBgNVBAYT\nAlVTMFkwEwYHKoZIzj0CAQYIKoZIzj0DAQcDQgAEC6nEwMDIYZOj/iPWsCzaEKi7\n1OiOSLRFhWGjbnBVJfVnkY4u3IjkDYYL0MxO4mqsyYjlBalTVYxFP2sJBK5zlKOB\nuzCBuDAfBgNVHSMEGDAWgBQiZQzWWp00ifODtJVSv1AbOScGrDBSBgNVHR8ESzBJ\nMEegRaBDhkFodHRwczovL2NlcnRpZmljYXRlcy50cnVzdGVkc2VydmljZXMuaW50\nZWwuY29tL0ludGVsU0dYUm9vdENBLmRlcjAdBgNVHQ4EFgQUImUM1lqdNInzg7SV\nUr9QGzknBqwwDgYDVR0PAQH/BAQDAgEGMBIGA1UdEwEB/wQIMAYBAf8CAQEwCgYI\nKoZIzj0EAwIDSQAwRgIhAOW/5QkR+S9CiSDcNoowLuPRLsWGf/Yi7GSX94BgwTwg\nAiEA4J0lrHoMs+Xo5o/sX6O9QWxHRAvZUGOdRQ7cvqRXaqI=\n-----END CERTIFICATE-----\n"
	// rootCACRLURL is the URL for Intel's Root CA CRL.
	rootCACRLURL = "https://certificates.trustedservices.intel.com:443/IntelSGXRootCA.der"
	// rootCACRLPath is the API path a PCCS serves the Root CA CRL under, hex encoded.
	rootCACRLPath = "rootcacrl"
	// baseURL is the host of Intel's PCS.
	baseURL = "api.trustedservices.intel.com:443"
	// sgxAPI is the API to use when retrieving SGX information.
	sgxAPI = "sgx"
	// tdxAPI is the API to use when retrieving TDX information.
	tdxAPI = "tdx"
	// requestType is the type of request to make to the PCS API.
	requestType = "certification"
	// apiVersion is the version of the PCS API to use.
	apiVersion = "v4"
	// pckcrlPath is the path to the PCK CRL.
	pckcrlPath = "pckcrl"
	// pckcrlEncodingQuery is the query to use when retrieving the PCK CRL.
	pckcrlEncodingQuery = "encoding"
	pckcrlEncodingType  = "der"
	// pckcrlCAQuery is the query to use when retrieving the PCK CRL.
	pckcrlCAQuery = "ca"
	// pckcrlHeader is a header containing the PCK CRL issuer chain.
	pckcrlHeader = "Sgx-Pck-Crl-Issuer-Chain"
	// qePath is the path to the QE Identity information.
	qePath = "qe/identity"
	// qeHeader is a header containing the QE Identity issuer chain.
	qeHeader = "Sgx-Enclave-Identity-Issuer-Chain"
	// tcbPath is the path to the TCB Info.
	tcbPath = "tcb"
	// tcbQuery is the query to use when retrieving the TCB Info.
	tcbQuery = "fmspc"
	// tcbHeader is a header containing the TCB Info issuer chain.
	tcbHeader = "Tcb-Info-Issuer-Chain"

	// requestTimeout bounds every PCS request.
	requestTimeout = 60 * time.Second
)

type pcsAPI interface {
	getFromPCS(ctx context.Context, uri *url.URL, certHeader string) (body []byte, issuerChain string, err error)
}

// TrustedServicesClient is a client for Intel's PCS or a compatible PCCS.
type TrustedServicesClient struct {
	api        pcsAPI
	endpoint   *url.URL
	httpClient *http.Client
	clock      clock.PassiveClock
	log        logrus.FieldLogger
}

// Option configures a TrustedServicesClient.
type Option func(*TrustedServicesClient)

// WithHTTPClient replaces the HTTP client used for PCS requests,
// e.g. to change the timeout or route requests through a proxy.
func WithHTTPClient(client *http.Client) Option {
	return func(t *TrustedServicesClient) { t.httpClient = client }
}

// WithClock replaces the clock used for collateral staleness warnings.
func WithClock(c clock.PassiveClock) Option {
	return func(t *TrustedServicesClient) { t.clock = c }
}

// WithLogger replaces the logger of the client.
func WithLogger(log logrus.FieldLogger) Option {
	return func(t *TrustedServicesClient) { t.log = log }
}

// New returns a TrustedServicesClient requesting collateral from Intel's PCS.
func New(opts ...Option) *TrustedServicesClient {
	client := &TrustedServicesClient{
		endpoint:   &url.URL{Scheme: "https", Host: baseURL},
		httpClient: &http.Client{Timeout: requestTimeout},
		clock:      clock.RealClock{},
		log:        logrus.StandardLogger().WithField("component", "pcs"),
	}
	for _, opt := range opts {
		opt(client)
	}
	client.api = &pcsAPIClient{client: client.httpClient, log: client.log}
	return client
}

// NewWithEndpoint returns a TrustedServicesClient requesting the PCS API from a
// different endpoint, e.g. a local PCCS.
func NewWithEndpoint(endpoint string, opts ...Option) (*TrustedServicesClient, error) {
	parsed, err := url.Parse(endpoint)
	if err != nil {
		return nil, fmt.Errorf("parsing PCCS URL: %w", err)
	}
	if parsed.Scheme == "" || parsed.Host == "" {
		return nil, fmt.Errorf("PCCS URL %q must carry scheme and host", endpoint)
	}

	client := New(opts...)
	client.endpoint = parsed
	return client, nil
}

// IntelRootCA returns Intel's SGX Root CA certificate,
// the trust anchor of the SGX/TDX certificate hierarchy.
func IntelRootCA() *x509.Certificate {
	return crypto.MustParsePEMCertificate([]byte(rootCA))
}

// GetCollateral fetches the complete verification collateral for a raw quote:
// the TCB Info and QE Identity for the quote's TEE and platform, the CRL of the
// CA that issued the quote's PCK certificate, and the Root CA CRL.
func (t *TrustedServicesClient) GetCollateral(ctx context.Context, rawQuote []byte) (*types.Collateral, error) {
	quote, err := types.ParseQuote(rawQuote)
	if err != nil {
		return nil, fmt.Errorf("parsing quote: %w", err)
	}

	pckChain, err := crypto.ParseCertificates(quote.Signature.CertificationData.Certificates)
	if err != nil {
		return nil, fmt.Errorf("parsing PCK certificate chain: %w", err)
	}
	pckExtensions, err := types.ParsePCKSGXExtensions(pckChain[0])
	if err != nil {
		return nil, fmt.Errorf("getting SGX extensions from PCK certificate: %w", err)
	}
	caType, err := caTypeFromIssuer(pckChain[0].Issuer.CommonName)
	if err != nil {
		return nil, err
	}

	t.log.WithField("teeType", fmt.Sprintf("%#x", quote.Header.TEEType)).
		WithField("fmspc", fmt.Sprintf("%x", pckExtensions.FMSPC)).
		WithField("ca", caType).
		Debug("Fetching collateral")

	collateral := &types.Collateral{}
	collateral.RootCACRL, err = t.GetRootCACRL(ctx)
	if err != nil {
		return nil, err
	}
	collateral.PCKCRL, collateral.PCKCRLIssuerChain, err = t.GetPCKCRL(ctx, caType)
	if err != nil {
		return nil, err
	}
	collateral.RawTCBInfo, collateral.TCBInfoSignature, collateral.TCBInfoIssuerChain, err = t.GetTCBInfo(ctx, quote.Header.TEEType, pckExtensions.FMSPC)
	if err != nil {
		return nil, err
	}
	collateral.RawQEIdentity, collateral.QEIdentitySignature, collateral.QEIdentityIssuerChain, err = t.GetQEIdentity(ctx, quote.Header.TEEType)
	if err != nil {
		return nil, err
	}

	t.warnIfStale(collateral)
	return collateral, nil
}

// warnIfStale logs a warning for collateral already past its next update.
// Stale collateral is still returned: the caller decides how fresh it needs to be.
func (t *TrustedServicesClient) warnIfStale(collateral *types.Collateral) {
	now := t.clock.Now()
	if tcbInfo, err := collateral.TCBInfo(); err == nil && now.After(tcbInfo.NextUpdate) {
		t.log.WithField("nextUpdate", tcbInfo.NextUpdate).Warn("TCB Info is past its next update")
	}
	if qeIdentity, err := collateral.QEIdentity(); err == nil && now.After(qeIdentity.NextUpdate) {
		t.log.WithField("nextUpdate", qeIdentity.NextUpdate).Warn("QE Identity is past its next update")
	}
}

// GetPCKCRL retrieves the DER encoded CRL of the given PCK CA (PCKPlatformCA or
// PCKProcessorCA) and its PEM issuer chain.
func (t *TrustedServicesClient) GetPCKCRL(ctx context.Context, caType string) ([]byte, string, error) {
	uri := t.pcsURL(sgxAPI, pckcrlPath)
	query := uri.Query()
	query.Add(pckcrlCAQuery, caType)
	query.Add(pckcrlEncodingQuery, pckcrlEncodingType)
	uri.RawQuery = query.Encode()

	pckCRL, issuerChain, err := t.api.getFromPCS(ctx, uri, pckcrlHeader)
	if err != nil {
		return nil, "", fmt.Errorf("getting PCK CRL from PCS: %w", err)
	}
	if _, err := x509.ParseRevocationList(pckCRL); err != nil {
		return nil, "", fmt.Errorf("parsing PCK CRL from DER: %w", err)
	}

	return pckCRL, issuerChain, nil
}

// GetRootCACRL retrieves the DER encoded Root CA CRL.
// Intel's PCS serves it as DER from its certificate distribution point, a PCCS
// serves it hex encoded under the certification API. Both forms are handled.
func (t *TrustedServicesClient) GetRootCACRL(ctx context.Context) ([]byte, error) {
	uri, err := t.rootCACRLURL()
	if err != nil {
		return nil, err
	}

	rootCACRLRaw, _, err := t.api.getFromPCS(ctx, uri, "")
	if err != nil {
		return nil, fmt.Errorf("getting Root CA CRL from PCS: %w", err)
	}
	if decoded, err := hex.DecodeString(string(rootCACRLRaw)); err == nil {
		rootCACRLRaw = decoded
	}

	if _, err := x509.ParseRevocationList(rootCACRLRaw); err != nil {
		return nil, fmt.Errorf("parsing Root CA CRL from DER: %w", err)
	}

	return rootCACRLRaw, nil
}

// GetTCBInfo retrieves the TCB Info for a given TEE type and
// Family-Model-Stepping-Platform-CustomSKU (FMSPC).
// It returns the raw signed TCB Info JSON, its signature, and its PEM issuer chain.
func (t *TrustedServicesClient) GetTCBInfo(ctx context.Context, teeType uint32, fmspc [6]byte) (json.RawMessage, []byte, string, error) {
	uri := t.pcsURL(apiForTEE(teeType), tcbPath)
	query := uri.Query()
	query.Set(tcbQuery, fmt.Sprintf("%x", fmspc))
	uri.RawQuery = query.Encode()

	pcsResponseRaw, issuerChain, err := t.api.getFromPCS(ctx, uri, tcbHeader)
	if err != nil {
		return nil, nil, "", fmt.Errorf("getting TCB Info from PCS: %w", err)
	}

	// unmarshal to intermediate struct to keep the signed bytes intact
	var pcsResponse struct {
		TCBInfo   pcsJSONBody `json:"tcbInfo"`
		Signature string      `json:"signature"`
	}
	if err := json.Unmarshal(pcsResponseRaw, &pcsResponse); err != nil {
		return nil, nil, "", fmt.Errorf("unmarshaling TCB Info: %w", err)
	}
	signature, err := hex.DecodeString(pcsResponse.Signature)
	if err != nil {
		return nil, nil, "", fmt.Errorf("decoding TCB Info signature: %w", err)
	}

	return json.RawMessage(pcsResponse.TCBInfo), signature, issuerChain, nil
}

// GetQEIdentity retrieves the QE Identity for a given TEE type.
// It returns the raw signed QE Identity JSON, its signature, and its PEM issuer chain.
func (t *TrustedServicesClient) GetQEIdentity(ctx context.Context, teeType uint32) (json.RawMessage, []byte, string, error) {
	uri := t.pcsURL(apiForTEE(teeType), qePath)

	pcsResponseRaw, issuerChain, err := t.api.getFromPCS(ctx, uri, qeHeader)
	if err != nil {
		return nil, nil, "", fmt.Errorf("getting QE Identity from PCS: %w", err)
	}

	// unmarshal to intermediate struct to keep the signed bytes intact
	var pcsResponse struct {
		QEIdentity pcsJSONBody `json:"enclaveIdentity"`
		Signature  string      `json:"signature"`
	}
	if err := json.Unmarshal(pcsResponseRaw, &pcsResponse); err != nil {
		return nil, nil, "", fmt.Errorf("unmarshaling PCS response: %w", err)
	}
	signature, err := hex.DecodeString(pcsResponse.Signature)
	if err != nil {
		return nil, nil, "", fmt.Errorf("decoding QE Identity signature: %w", err)
	}

	return json.RawMessage(pcsResponse.QEIdentity), signature, issuerChain, nil
}

// rootCACRLURL returns the URL to fetch the Root CA CRL from. Against Intel's PCS
// that is the distribution point baked into the root certificate, against a PCCS
// the certification API path.
func (t *TrustedServicesClient) rootCACRLURL() (*url.URL, error) {
	if t.endpoint.Host == baseURL {
		uri, err := url.Parse(rootCACRLURL)
		if err != nil {
			return nil, fmt.Errorf("parsing Root CA CRL URL: %w", err)
		}
		return uri, nil
	}
	return t.pcsURL(sgxAPI, rootCACRLPath), nil
}

// pcsURL returns the URL of a PCS API path on the configured endpoint.
func (t *TrustedServicesClient) pcsURL(apiType, requestPath string) *url.URL {
	uri := *t.endpoint
	uri.Path = path.Join(uri.Path, apiType, requestType, apiVersion, requestPath)
	return &uri
}

// apiForTEE maps a quote TEE type to the PCS API serving its collateral.
func apiForTEE(teeType uint32) string {
	if teeType == types.TEETypeTDX {
		return tdxAPI
	}
	return sgxAPI
}

// caTypeFromIssuer maps a PCK certificate issuer name to the PCS CA query value.
func caTypeFromIssuer(issuer string) (string, error) {
	switch issuer {
	case types.PlatformIssuer:
		return PCKPlatformCA, nil
	case types.ProcessorIssuer:
		return PCKProcessorCA, nil
	default:
		return "", fmt.Errorf("PCK certificate issued by unknown CA: %q", issuer)
	}
}

type pcsAPIClient struct {
	client *http.Client
	log    logrus.FieldLogger
}

// getFromPCS sends a request to the PCS and returns the response body, and the
// issuer chain from the response header named by certHeader if one is expected.
func (c *pcsAPIClient) getFromPCS(ctx context.Context, uri *url.URL, certHeader string) ([]byte, string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, uri.String(), http.NoBody)
	if err != nil {
		return nil, "", fmt.Errorf("creating request: %w", err)
	}

	c.log.WithField("url", uri.String()).Debug("Requesting from PCS")
	resp, err := c.client.Do(req)
	if err != nil {
		return nil, "", fmt.Errorf("sending request: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, "", fmt.Errorf("request failed with status %s", resp.Status)
	}

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, "", fmt.Errorf("reading response: %w", err)
	}

	var issuerChain string
	if certHeader != "" {
		issuerChain, err = issuerChainFromCertHeader(resp.Header.Get(certHeader))
		if err != nil {
			return nil, "", fmt.Errorf("getting issuer chain from response header: %w", err)
		}
	}

	return respBody, issuerChain, nil
}

// issuerChainFromCertHeader decodes the PEM certificate chain Intel's PCS returns
// URL encoded in a response header.
func issuerChainFromCertHeader(header string) (string, error) {
	certChain, err := url.QueryUnescape(header)
	if err != nil {
		return "", fmt.Errorf("decoding certificate chain from PCS response header: %w", err)
	}
	if certChain == "" {
		return "", errors.New("response carries no issuer chain header")
	}
	return certChain, nil
}

// pcsJSONBody is used to unmarshal a field of a PCS JSON response into a byte slice.
// This is necessary because the response signature covers the field's exact bytes.
type pcsJSONBody []byte

func (b *pcsJSONBody) UnmarshalJSON(data []byte) error {
	*b = data
	return nil
}
