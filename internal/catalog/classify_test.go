package catalog

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestClassifyFilename(t *testing.T) {
	cases := []struct {
		filename string
		family   FileFamily
	}{
		{"FRE_IS_202401.zip", FamilyIssuance},
		{"FRE_FISS_20240115.zip", FamilyIssuance},
		{"fre_is_202312.txt", FamilyIssuance},
		{"FRE_ILLD_202401.zip", FamilyLoanLevel},
		{"llmon1.zip", FamilyLoanFixed},
		{"dailyll_new.txt", FamilyLoanFixed},
		{"FRE_DPR_Fctr_202401.zip", FamilyFactor},
		{"factorA1.zip", FamilyFactor},
		{"readme.pdf", FamilyUnknown},
		{"quarterly_report.xlsx", FamilyUnknown},
		{"", FamilyUnknown},
	}

	for _, c := range cases {
		assert.Equal(t, c.family, ClassifyFilename(c.filename), "filename %q", c.filename)
	}
}

func TestExtractFileDate_FullDate(t *testing.T) {
	d, ok := ExtractFileDate("FRE_FISS_20240115.zip")
	assert.True(t, ok)
	assert.Equal(t, time.Date(2024, 1, 15, 0, 0, 0, 0, time.UTC), d)
}

func TestExtractFileDate_YearMonth(t *testing.T) {
	d, ok := ExtractFileDate("FRE_IS_202403.zip")
	assert.True(t, ok)
	assert.Equal(t, time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC), d)
}

func TestExtractFileDate_Dashed(t *testing.T) {
	d, ok := ExtractFileDate("export_2023-11-30.txt")
	assert.True(t, ok)
	assert.Equal(t, time.Date(2023, 11, 30, 0, 0, 0, 0, time.UTC), d)
}

func TestExtractFileDate_None(t *testing.T) {
	_, ok := ExtractFileDate("llmon1.zip")
	assert.False(t, ok)
}
