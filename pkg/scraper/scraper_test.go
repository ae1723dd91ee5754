package scraper

import (
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/require"
)

const header = "Location\nDistance / Next Available\n"

func date(t *testing.T, s string) time.Time {
	t.Helper()
	d, err := ParseDate(s)
	require.NoError(t, err)
	return d
}

func TestParseTable(t *testing.T) {
	text := header +
		"Office A\n123 Main St\n5.2 miles 03/15/2024\ndouble_arrow\n" +
		"Office B\n456 Oak Ave\n2.1 miles 03/10/2024"

	appts, err := ParseTable(text)
	require.NoError(t, err)

	expected := []Appointment{
		{Office: "Office A", Address: "123 Main St", Distance: 5.2, Date: date(t, "03/15/2024"), RawDate: "03/15/2024"},
		{Office: "Office B", Address: "456 Oak Ave", Distance: 2.1, Date: date(t, "03/10/2024"), RawDate: "03/10/2024"},
	}
	if diff := cmp.Diff(expected, appts); diff != "" {
		t.Fatalf("unexpected appointments (-want +got):\n%s", diff)
	}

	SortByDate(appts)
	require.Equal(t, []string{"Office B", "Office A"}, []string{appts[0].Office, appts[1].Office})
	require.Equal(t, []string{"03/10/2024", "03/15/2024"}, Dates(appts))
}

func TestParseTableGroupCount(t *testing.T) {
	for _, k := range []int{0, 1, 2, 7} {
		t.Run(fmt.Sprintf("%d groups", k), func(t *testing.T) {
			var b strings.Builder
			b.WriteString(header)
			for i := 0; i < k; i++ {
				fmt.Fprintf(&b, "Office %d\n%d Elm St\n%d.5 miles 04/%02d/2024\n%s\n", i, i, i, i+1, Separator)
			}

			appts, err := ParseTable(b.String())
			require.NoError(t, err)
			require.Len(t, appts, k)
			for i, appt := range appts {
				require.Equal(t, fmt.Sprintf("Office %d", i), appt.Office)
			}
		})
	}
}

func TestParseTableTrailingSeparatorAndBlankLines(t *testing.T) {
	text := header +
		"Office A\n123 Main St\n5.2 miles 03/15/2024\ndouble_arrow\n" +
		"double_arrow\n\n"

	appts, err := ParseTable(text)
	require.NoError(t, err)
	require.Len(t, appts, 1)
	require.Equal(t, "Office A", appts[0].Office)
}

func TestParseTableHeaderOnly(t *testing.T) {
	appts, err := ParseTable("Location\nDistance")
	require.NoError(t, err)
	require.Empty(t, appts)
}

func TestParseTableMalformed(t *testing.T) {
	testCases := []struct {
		name string
		body string
	}{
		{"short group", "Office A\n123 Main St\ndouble_arrow"},
		{"bad distance", "Office A\n123 Main St\nfar 03/15/2024"},
		{"bad date", "Office A\n123 Main St\n5.2 miles soon"},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := ParseTable(header + tc.body)
			require.True(t, errors.Is(err, ErrMalformedRow), "got %v", err)
		})
	}
}

func TestSortByDateStable(t *testing.T) {
	appts := []Appointment{
		{Office: "C", Date: date(t, "05/01/2024")},
		{Office: "A1", Date: date(t, "04/01/2024")},
		{Office: "B", Date: date(t, "04/15/2024")},
		{Office: "A2", Date: date(t, "04/01/2024")},
	}
	SortByDate(appts)

	got := make([]string, len(appts))
	for i, a := range appts {
		got[i] = a.Office
	}
	require.Equal(t, []string{"A1", "A2", "B", "C"}, got)
	for i := 1; i < len(appts); i++ {
		require.False(t, appts[i].Date.Before(appts[i-1].Date))
	}
}

func TestNormalizeDate(t *testing.T) {
	testCases := map[string]string{
		"6/2/2023":   "06/02/2023",
		"06/02/2023": "06/02/2023",
		"12/31/1999": "12/31/1999",
		"1/15/2024":  "01/15/2024",
	}
	for in, want := range testCases {
		got, err := NormalizeDate(in)
		require.NoError(t, err, in)
		require.Equal(t, want, got)
	}

	for _, bad := range []string{"", "2023-06-02", "13/01/2023", "6/2/23"} {
		_, err := NormalizeDate(bad)
		require.Error(t, err, bad)
	}
}
