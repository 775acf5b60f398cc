/*
# SGX/TDX Attestation Data Types

This package contains the data types and parsing functions for SGX and TDX quotes
and for the Intel PCS structures (TCB Info, QE Identity, collateral) used to verify them.

## Quote Format

To give a *rough* understanding of how a quote is formed and how the parser walks it,
see the graphic below:

	┌───────────────────────────────────────────┐
	│ QuoteHeader (48 bytes)                    │  version 3, 4, or 5
	├───────────────────────────────────────────┤
	│ report body descriptor (6 bytes, v5 only) │  type and size of the report body
	├───────────────────────────────────────────┤
	│ ReportBody                                │  EnclaveReport (384 bytes, SGX),
	│                                           │  TDReport10 (584 bytes, TDX 1.0), or
	│                                           │  TDReport15 (648 bytes, TDX 1.5)
	├───────────────────────────────────────────┤
	│ SignatureLength (4 bytes)                 │
	├───────────────────────────────────────────┤
	│ ECDSA256QuoteAuthData                     │  parseSignature
	│ ┌───────────────────────────────────────┐ │
	│ │ Signature (64 bytes)                  │ │  over header and report body
	│ ├───────────────────────────────────────┤ │
	│ │ PublicKey (64 bytes)                  │ │  attestation key
	│ ├───────────────────────────────────────┤ │
	│ │ CertificationData envelope (6 bytes)  │ │  type == 6, v4 and v5 only
	│ ├───────────────────────────────────────┤ │
	│ │ QE report certification data          │ │  parseQEReportCertificationData
	│ │ ┌───────────────────────────────────┐ │ │
	│ │ │ EnclaveReport (384 bytes)         │ │ │  QE report
	│ │ ├───────────────────────────────────┤ │ │
	│ │ │ Signature (64 bytes)              │ │ │  over the QE report, by the PCK
	│ │ ├───────────────────────────────────┤ │ │
	│ │ │ QEAuthData (2 bytes + variable)   │ │ │
	│ │ ├───────────────────────────────────┤ │ │
	│ │ │ CertificationData                 │ │ │  type == 5, PEM PCK cert chain
	│ │ │ (6 bytes + variable)              │ │ │  terminated with \0 byte
	│ │ └───────────────────────────────────┘ │ │
	│ └───────────────────────────────────────┘ │
	└───────────────────────────────────────────┘

Version 3 quotes omit the CertificationData envelope: the QE report certification
data follows the attestation public key directly.
*/
package types
