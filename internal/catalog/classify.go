package catalog

import (
	"regexp"
	"time"
)

// Filename patterns per family. Issuance covers both the monthly summary
// (ISS_YYYYMM) and the intraday variant (FISS_YYYYMMDD).
var familyPatterns = []struct {
	family  FileFamily
	pattern *regexp.Regexp
}{
	{FamilyIssuance, regexp.MustCompile(`(?i)_F?ISS?_\d{6,8}\.(zip|txt)$`)},
	{FamilyIssuance, regexp.MustCompile(`(?i)_IS_\d{6}\.(zip|txt)$`)},
	{FamilyLoanLevel, regexp.MustCompile(`(?i)_ILLD_\d{6}\.(zip|txt)$`)},
	{FamilyLoanFixed, regexp.MustCompile(`(?i)^(daily|monthly)?ll(mon)?\w*\d*\.(zip|txt)$`)},
	{FamilyFactor, regexp.MustCompile(`(?i)(_DPR_Fctr|factor[AB]\d)\w*\.(zip|txt|fac)$`)},
}

// ClassifyFilename maps a filename onto the closed FileFamily set. Names
// matching no pattern classify as FamilyUnknown and are fail-safe excluded
// from download selection.
func ClassifyFilename(filename string) FileFamily {
	for _, fp := range familyPatterns {
		if fp.pattern.MatchString(filename) {
			return fp.family
		}
	}
	return FamilyUnknown
}

var fileDatePatterns = []struct {
	re    *regexp.Regexp
	parse func(m []string) (time.Time, error)
}{
	// YYYYMMDD
	{regexp.MustCompile(`(\d{4})(\d{2})(\d{2})`), func(m []string) (time.Time, error) {
		return time.Parse("20060102", m[1]+m[2]+m[3])
	}},
	// YYYY-MM-DD
	{regexp.MustCompile(`(\d{4})-(\d{2})-(\d{2})`), func(m []string) (time.Time, error) {
		return time.Parse("2006-01-02", m[0])
	}},
	// YYYYMM, first of month
	{regexp.MustCompile(`(\d{6})`), func(m []string) (time.Time, error) {
		return time.Parse("200601", m[1])
	}},
}

// ExtractFileDate pulls the publication date embedded in a filename.
// Returns the zero time when no date is recognizable.
func ExtractFileDate(filename string) (time.Time, bool) {
	for _, fp := range fileDatePatterns {
		m := fp.re.FindStringSubmatch(filename)
		if m == nil {
			continue
		}
		t, err := fp.parse(m)
		if err != nil {
			continue
		}
		return t.UTC(), true
	}
	return time.Time{}, false
}
