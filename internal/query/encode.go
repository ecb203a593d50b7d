package query

import (
	"encoding/csv"
	"io"
	"strconv"
	"strings"
	"text/tabwriter"
	"time"

	jsoniter "github.com/json-iterator/go"
)

// Format selects the wire encoding of a Result.
type Format int

const (
	FormatText Format = iota
	FormatJSON
	FormatCSV
)

// NegotiateFormat maps an Accept header to a result format. Plain text is
// the default for anything unrecognized.
func NegotiateFormat(accept string) Format {
	for _, part := range strings.Split(accept, ",") {
		mt := strings.TrimSpace(strings.SplitN(part, ";", 2)[0])
		switch mt {
		case "application/json":
			return FormatJSON
		case "text/csv":
			return FormatCSV
		case "text/plain":
			return FormatText
		}
	}
	return FormatText
}

// ContentType returns the MIME type for a format.
func (f Format) ContentType() string {
	switch f {
	case FormatJSON:
		return "application/json"
	case FormatCSV:
		return "text/csv"
	}
	return "text/plain; charset=utf-8"
}

// Encode writes the result in the given format.
func Encode(w io.Writer, res *Result, f Format) error {
	switch f {
	case FormatJSON:
		return encodeJSON(w, res)
	case FormatCSV:
		return encodeCSV(w, res)
	}
	return encodeText(w, res)
}

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// encodeJSON writes {"columns": [...], "rows": [{...}, ...]} with each row
// object's keys in column order.
func encodeJSON(w io.Writer, res *Result) error {
	stream := json.BorrowStream(w)
	defer json.ReturnStream(stream)

	stream.WriteObjectStart()
	stream.WriteObjectField("columns")
	stream.WriteArrayStart()
	for i, c := range res.Columns {
		if i > 0 {
			stream.WriteMore()
		}
		stream.WriteString(c)
	}
	stream.WriteArrayEnd()

	stream.WriteMore()
	stream.WriteObjectField("rows")
	stream.WriteArrayStart()
	for i, row := range res.Rows {
		if i > 0 {
			stream.WriteMore()
		}
		stream.WriteObjectStart()
		for j, c := range res.Columns {
			if j > 0 {
				stream.WriteMore()
			}
			stream.WriteObjectField(c)
			if j < len(row) && row[j] != nil {
				stream.WriteVal(row[j])
			} else {
				stream.WriteNil()
			}
		}
		stream.WriteObjectEnd()
	}
	stream.WriteArrayEnd()
	stream.WriteObjectEnd()
	return stream.Flush()
}

// encodeCSV writes a header row followed by the data rows. NULL renders as
// an empty field.
func encodeCSV(w io.Writer, res *Result) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(res.Columns); err != nil {
		return err
	}
	record := make([]string, len(res.Columns))
	for _, row := range res.Rows {
		for i := range record {
			if i < len(row) && row[i] != nil {
				record[i] = renderValue(row[i])
			} else {
				record[i] = ""
			}
		}
		if err := cw.Write(record); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

// encodeText writes an aligned plain-text table with a row-count footer.
func encodeText(w io.Writer, res *Result) error {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	if _, err := io.WriteString(tw, strings.Join(res.Columns, "\t")+"\n"); err != nil {
		return err
	}
	for _, row := range res.Rows {
		parts := make([]string, len(res.Columns))
		for i := range parts {
			if i < len(row) && row[i] != nil {
				parts[i] = renderValue(row[i])
			} else {
				parts[i] = "NULL"
			}
		}
		if _, err := io.WriteString(tw, strings.Join(parts, "\t")+"\n"); err != nil {
			return err
		}
	}
	if err := tw.Flush(); err != nil {
		return err
	}
	_, err := io.WriteString(w, "("+strconv.Itoa(len(res.Rows))+" rows)\n")
	return err
}

func renderValue(v any) string {
	switch x := v.(type) {
	case string:
		return x
	case int32:
		return strconv.FormatInt(int64(x), 10)
	case int64:
		return strconv.FormatInt(x, 10)
	case int:
		return strconv.Itoa(x)
	case float64:
		return strconv.FormatFloat(x, 'g', -1, 64)
	case bool:
		return strconv.FormatBool(x)
	case time.Time:
		return x.UTC().Format(time.RFC3339)
	}
	return ""
}
