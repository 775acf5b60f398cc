package types

import (
	"testing"

	"github.com/edgelesssys/go-dcap-qvl/blobs"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMarshalEnclaveReport(t *testing.T) {
	assert := assert.New(t)
	require := require.New(t)

	rawQuote := blobs.TDXQuote()
	parsedQuote, err := ParseQuote(rawQuote)
	require.NoError(err)

	qeReport := parsedQuote.Signature.QEReport
	assert.EqualValues(rawQuote[770:1154], qeReport.Marshal())
}

func TestMarshalQuoteHeader(t *testing.T) {
	assert := assert.New(t)
	require := require.New(t)

	rawQuote := blobs.TDXQuote()
	parsedQuote, err := ParseQuote(rawQuote)
	require.NoError(err)

	quoteHeader := parsedQuote.Header
	assert.EqualValues(rawQuote[0:48], quoteHeader.Marshal())
}

func TestMarshalTDReport10(t *testing.T) {
	assert := assert.New(t)
	require := require.New(t)

	rawQuote := blobs.TDXQuote()
	parsedQuote, err := ParseQuote(rawQuote)
	require.NoError(err)

	body, ok := parsedQuote.Body.(TDReport10)
	require.True(ok)
	assert.EqualValues(rawQuote[48:632], body.Marshal())
}

func TestMarshalTDReport15(t *testing.T) {
	assert := assert.New(t)
	require := require.New(t)

	rawQuote := blobs.TDXQuoteV5()
	parsedQuote, err := ParseQuote(rawQuote)
	require.NoError(err)

	body, ok := parsedQuote.Body.(TDReport15)
	require.True(ok)
	assert.EqualValues(rawQuote[54:702], body.Marshal())
}

func TestSignedData(t *testing.T) {
	testCases := map[string]struct {
		rawQuote []byte
		wantEnd  int
	}{
		"version 3 SGX ends after enclave report": {
			rawQuote: blobs.SGXQuote(),
			wantEnd:  432,
		},
		"version 4 SGX ends after enclave report": {
			rawQuote: blobs.SGXQuoteV4(),
			wantEnd:  432,
		},
		"version 4 TDX ends after TD report": {
			rawQuote: blobs.TDXQuote(),
			wantEnd:  632,
		},
		"version 5 covers the body descriptor": {
			rawQuote: blobs.TDXQuoteV5(),
			wantEnd:  702,
		},
	}

	for name, tc := range testCases {
		t.Run(name, func(t *testing.T) {
			assert := assert.New(t)
			require := require.New(t)

			parsedQuote, err := ParseQuote(tc.rawQuote)
			require.NoError(err)

			signedData, err := parsedQuote.SignedData()
			require.NoError(err)
			assert.Equal(tc.rawQuote[:tc.wantEnd], signedData)
		})
	}
}

func TestMarshalQuote(t *testing.T) {
	testCases := map[string][]byte{
		"version 3 SGX": blobs.SGXQuote(),
		"version 4 SGX": blobs.SGXQuoteV4(),
		"version 4 TDX": blobs.TDXQuote(),
		"version 5 TDX": blobs.TDXQuoteV5(),
	}

	for name, rawQuote := range testCases {
		t.Run(name, func(t *testing.T) {
			assert := assert.New(t)
			require := require.New(t)

			parsedQuote, err := ParseQuote(rawQuote)
			require.NoError(err)

			marshaled, err := parsedQuote.Marshal()
			require.NoError(err)
			assert.Equal(rawQuote, marshaled)
		})
	}
}

func TestMarshalReportBody(t *testing.T) {
	assert := assert.New(t)

	_, err := MarshalReportBody(nil)
	assert.Error(err)
}
