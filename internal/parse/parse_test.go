package parse

import (
	"archive/zip"
	"bytes"
	"context"
	"database/sql"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/anaishowland/oasive-db-sub000/internal/observability"
	"github.com/anaishowland/oasive-db-sub000/internal/warehouse"
)

type fakeResult struct{ rows int64 }

func (r fakeResult) LastInsertId() (int64, error) { return 0, nil }
func (r fakeResult) RowsAffected() (int64, error) { return r.rows, nil }

// fakeExecutor records every statement a parser issues.
type fakeExecutor struct {
	queries []string
	args    [][]interface{}
	failOn  string // substring; matching queries fail
}

func (e *fakeExecutor) Execute(_ context.Context, query string, args ...interface{}) (sql.Result, error) {
	if e.failOn != "" && strings.Contains(query, e.failOn) {
		return nil, errors.New("forced failure")
	}
	e.queries = append(e.queries, query)
	e.args = append(e.args, args)
	return fakeResult{rows: 1}, nil
}

func (e *fakeExecutor) QueryRow(_ context.Context, _ string, _ ...interface{}) *sql.Row {
	return nil
}

func (e *fakeExecutor) Get(_ context.Context, _ interface{}, _ string, _ ...interface{}) error {
	return sql.ErrNoRows
}

func (e *fakeExecutor) Select(_ context.Context, _ interface{}, _ string, _ ...interface{}) error {
	return nil
}

func (e *fakeExecutor) countContaining(substr string) int {
	n := 0
	for _, q := range e.queries {
		if strings.Contains(q, substr) {
			n++
		}
	}
	return n
}

func testRepos(exec *fakeExecutor) (*warehouse.PoolRepository, *warehouse.LoanRepository, *warehouse.FactRepository, observability.Logger, observability.Metrics) {
	logger := observability.NewStdoutLogger("error", false)
	metrics := observability.NewStdoutMetrics()
	return warehouse.NewPoolRepository(exec, logger, metrics),
		warehouse.NewLoanRepository(exec, logger, metrics),
		warehouse.NewFactRepository(exec, logger, metrics),
		logger, metrics
}

func TestIssuanceParser_Parse(t *testing.T) {
	content := strings.Join([]string{
		"Prefix|Security Identifier|CUSIP|Security Factor Date|Security Factor|Issue Date|WA Current Interest Rate|WA Loan Term|WA Loan Age|Average Mortgage Loan Amount|WA Borrower Credit Score|Loan Count|Servicer Name|Current Investor Security UPB",
		"Q4|123456|31328ABC1|202401|0.95432100|122023|6.125|360|3|82000|698|412|WELLS FARGO|39120044.12",
		"Q4|123457|31328ABC2|202401|0.99120000|122023|6.875|180|1|310000|755|88|ROCKET MORTGAGE|27004411.50",
		"Q4||31328ABC3|202401|1.00000000|122023|6.500|360|0|250000|740|10|X|100",
	}, "\n")

	exec := &fakeExecutor{}
	pools, _, facts, logger, metrics := testRepos(exec)
	parser := NewIssuanceParser(pools, facts, logger, metrics)

	fileDate := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	result, err := parser.Parse(context.Background(), exec, []byte(content), FileMeta{
		Filename: "FRE_IS_202401.txt",
		FileDate: &fileDate,
	})
	require.NoError(t, err)

	assert.Equal(t, 2, result.Pools)
	assert.Equal(t, 2, result.Facts)
	assert.Equal(t, 1, result.Skipped, "row without security identifier is dropped")

	assert.Equal(t, 2, exec.countContaining("INSERT INTO pool "))
	assert.Equal(t, 2, exec.countContaining("INSERT INTO pool_period_fact"))
	assert.Contains(t, exec.args[0], "Q4-123456")
}

func TestIssuanceParser_ParseTwiceIssuesSameStatements(t *testing.T) {
	content := "Prefix|Security Identifier|Loan Count\nQ4|999001|55\n"

	exec1 := &fakeExecutor{}
	pools1, _, facts1, logger, metrics := testRepos(exec1)
	first, err := NewIssuanceParser(pools1, facts1, logger, metrics).
		Parse(context.Background(), exec1, []byte(content), FileMeta{Filename: "FRE_IS_202402.txt"})
	require.NoError(t, err)

	exec2 := &fakeExecutor{}
	pools2, _, facts2, _, _ := testRepos(exec2)
	second, err := NewIssuanceParser(pools2, facts2, logger, metrics).
		Parse(context.Background(), exec2, []byte(content), FileMeta{Filename: "FRE_IS_202402.txt"})
	require.NoError(t, err)

	assert.Equal(t, first, second)
	assert.Equal(t, exec1.queries, exec2.queries)
	assert.Equal(t, exec1.args, exec2.args)
}

func TestLoanLevelParser_BatchesAndPlaceholders(t *testing.T) {
	var b strings.Builder
	b.WriteString("Loan Identifier|Prefix|Security Identifier|Borrower Credit Score|Property State|Current Interest Rate\n")
	b.WriteString("L0001|Q4|123456|702|TX|6.250\n")
	b.WriteString("L0002|Q4|123456|688|TX|6.125\n")
	b.WriteString("L0003|Q4|777777|745|CA|5.990\n")
	b.WriteString("|Q4|123456|700|TX|6.000\n") // no loan id

	exec := &fakeExecutor{}
	pools, loans, _, logger, metrics := testRepos(exec)
	parser := NewLoanLevelParser(pools, loans, logger, metrics)

	result, err := parser.Parse(context.Background(), exec, []byte(b.String()), FileMeta{Filename: "FRE_ILLD_202401.txt"})
	require.NoError(t, err)

	assert.Equal(t, 3, result.Loans)
	assert.Equal(t, 1, result.Skipped)
	// One placeholder insert per distinct pool, one batch upsert for the loans.
	assert.Equal(t, 2, exec.countContaining("DO NOTHING"))
	assert.Equal(t, 1, exec.countContaining("INSERT INTO loan "))
}

// buildFixedLoanRecord lays out an L record of the base 142-byte layout.
func buildFixedLoanRecord(loanID, state, fico string) string {
	content := bytes.Repeat([]byte{' '}, layoutV10Len-1)
	copy(content[6:16], []byte(loanID))
	copy(content[84:86], []byte(state))
	copy(content[86:91], []byte("06250")) // 6.25
	copy(content[94:97], []byte(fico))
	return "L" + string(content)
}

func TestFixedWidthLoanParser_ResolvesLayoutFromRecordLength(t *testing.T) {
	file := strings.Join([]string{
		"H20240101 SAMPLE HEADER",
		"PAB1234 2024",
		buildFixedLoanRecord("0000000001", "TX", "712"),
		buildFixedLoanRecord("0000000002", "NY", "688"),
		"T0000000002",
	}, "\n")

	exec := &fakeExecutor{}
	pools, loans, _, logger, metrics := testRepos(exec)
	parser := NewFixedWidthLoanParser(pools, loans, logger, metrics)

	result, err := parser.Parse(context.Background(), exec, []byte(file), FileMeta{Filename: "llmon1_202401.txt"})
	require.NoError(t, err)

	assert.Equal(t, 2, result.Loans)
	assert.Equal(t, 1, exec.countContaining("DO NOTHING"), "one placeholder for the single pool")
}

func TestFixedWidthLoanParser_UnknownRecordLengthIsContentError(t *testing.T) {
	file := strings.Join([]string{
		"PAB1234 2024",
		"L" + strings.Repeat("x", 60), // far shorter than any published layout
	}, "\n")

	exec := &fakeExecutor{}
	pools, loans, _, logger, metrics := testRepos(exec)
	parser := NewFixedWidthLoanParser(pools, loans, logger, metrics)

	_, err := parser.Parse(context.Background(), exec, []byte(file), FileMeta{Filename: "llmon1_202401.txt"})
	require.Error(t, err)
	assert.True(t, IsContentError(err))
	assert.ErrorIs(t, err, ErrUnknownLayout)
}

func TestExtractArchive(t *testing.T) {
	t.Run("zip with data member", func(t *testing.T) {
		var buf bytes.Buffer
		w := zip.NewWriter(&buf)
		f, err := w.Create("FRE_IS_202401.txt")
		require.NoError(t, err)
		_, err = f.Write([]byte("Prefix|Security Identifier\nQ4|123456\n"))
		require.NoError(t, err)
		require.NoError(t, w.Close())

		content, err := extractArchive("FRE_IS_202401.zip", buf.Bytes())
		require.NoError(t, err)
		assert.Contains(t, string(content), "Q4|123456")
	})

	t.Run("corrupt zip", func(t *testing.T) {
		_, err := extractArchive("broken.zip", []byte("not a zip at all"))
		require.Error(t, err)
		assert.True(t, IsContentError(err))
		assert.ErrorIs(t, err, ErrCorruptArchive)
	})

	t.Run("plain text passes through", func(t *testing.T) {
		content, err := extractArchive("file.txt", []byte("a|b\n"))
		require.NoError(t, err)
		assert.Equal(t, "a|b\n", string(content))
	})
}

func TestParseFileDate(t *testing.T) {
	cases := map[string]*time.Time{
		"122023":   timePtr(2023, 12, 1),
		"20240115": timePtr(2024, 1, 15),
		"202403":   timePtr(2024, 3, 1),
		"garbage":  nil,
		"":         nil,
	}
	for input, want := range cases {
		got := parseFileDate(input)
		if want == nil {
			assert.Nil(t, got, "input %q", input)
		} else {
			require.NotNil(t, got, "input %q", input)
			assert.Equal(t, *want, *got, "input %q", input)
		}
	}
}

func timePtr(year int, month time.Month, day int) *time.Time {
	t := time.Date(year, month, day, 0, 0, 0, 0, time.UTC)
	return &t
}
