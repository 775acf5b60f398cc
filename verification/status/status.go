// Package status defines the TCB status values Intel reports for SGX/TDX platforms,
// and their severity ordering used when combining platform and QE statuses.
package status

// TCBStatus describes the trust status of a TCB level.
// The values match the status strings used by Intel's PCS in TCB Info and QE Identity documents.
type TCBStatus string

const (
	// UpToDate means all TCB components are on the latest known security version.
	UpToDate TCBStatus = "UpToDate"

	// SWHardeningNeeded means the platform firmware is current, but the attested software
	// should apply additional mitigations.
	SWHardeningNeeded TCBStatus = "SWHardeningNeeded"

	// ConfigurationNeeded means the platform firmware is current, but requires a configuration change.
	ConfigurationNeeded TCBStatus = "ConfigurationNeeded"

	// ConfigurationAndSWHardeningNeeded combines ConfigurationNeeded and SWHardeningNeeded.
	ConfigurationAndSWHardeningNeeded TCBStatus = "ConfigurationAndSWHardeningNeeded"

	// OutOfDate means at least one TCB component is below the latest known security version.
	OutOfDate TCBStatus = "OutOfDate"

	// OutOfDateConfigurationNeeded combines OutOfDate and ConfigurationNeeded.
	OutOfDateConfigurationNeeded TCBStatus = "OutOfDateConfigurationNeeded"

	// Revoked means the TCB level was revoked, e.g. because of a known compromise.
	Revoked TCBStatus = "Revoked"

	// Unspecified is reported for status values unknown to this package.
	Unspecified TCBStatus = "Unspecified"
)

// severityOrder ranks statuses from least to most severe.
var severityOrder = map[TCBStatus]int{
	UpToDate:                          0,
	SWHardeningNeeded:                 1,
	ConfigurationNeeded:               2,
	ConfigurationAndSWHardeningNeeded: 3,
	OutOfDate:                         4,
	OutOfDateConfigurationNeeded:      5,
	Revoked:                           6,
	Unspecified:                       7,
}

// Severity returns the rank of the status in the severity ordering,
// from UpToDate (least severe) to Unspecified (most severe).
// Statuses unknown to this package rank as Unspecified.
func (s TCBStatus) Severity() int {
	severity, ok := severityOrder[s]
	if !ok {
		return severityOrder[Unspecified]
	}
	return severity
}

// WorseOf returns the more severe of two TCB statuses.
func WorseOf(a, b TCBStatus) TCBStatus {
	if b.Severity() > a.Severity() {
		return b
	}
	return a
}
