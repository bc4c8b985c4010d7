package main

import (
	"bytes"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/goccy/go-json"
	"github.com/spf13/cobra"

	"github.com/JonMunkholm/hsds-validator/internal/resources"
	"github.com/JonMunkholm/hsds-validator/internal/tableschema"
	"github.com/JonMunkholm/hsds-validator/internal/validator"
)

var validateFlags struct {
	headersRow   string
	delimiter    string
	format       string
	fetchTimeout time.Duration
}

var validateCmd = &cobra.Command{
	Use:   "validate <type> <file|url|->",
	Short: "Validate a table against a resource schema",
	Long: `Validate reads a CSV file, an http(s) URL or standard input ("-") and
checks every row against the schema of the given resource type.

Examples:
  hsds-validate validate service services.csv
  hsds-validate validate location - --headers-row 0 < locations.csv
  hsds-validate validate phone https://example.org/phones.csv --format json`,
	Args: cobra.ExactArgs(2),
	RunE: runValidate,
}

func init() {
	rootCmd.AddCommand(validateCmd)

	validateCmd.Flags().StringVar(&validateFlags.headersRow, "headers-row", "1", "row holding column names, 0 for none, or auto")
	validateCmd.Flags().StringVar(&validateFlags.delimiter, "delimiter", "", "field delimiter (default comma)")
	validateCmd.Flags().StringVar(&validateFlags.format, "format", "text", "output format: text, json")
	validateCmd.Flags().DurationVar(&validateFlags.fetchTimeout, "fetch-timeout", time.Minute, "timeout for each GET of a URL source")
}

func runValidate(cmd *cobra.Command, args []string) error {
	logger := newLogger(cmd)
	t := resources.Type(args[0])

	v, err := validator.New(newCatalog(logger), t, validator.WithLogger(logger))
	if err != nil {
		return err
	}

	comma, err := parseDelimiter(validateFlags.delimiter)
	if err != nil {
		return err
	}
	src, err := openSource(cmd.InOrStdin(), args[1], comma)
	if err != nil {
		return err
	}

	headersRow, err := parseHeadersRow(cmd, validateFlags.headersRow, src, v.Schema())
	if err != nil {
		return err
	}

	res, err := validator.ResultFrom(v.Validate(cmd.Context(), src, validator.Options{HeadersRow: headersRow}))
	if err != nil {
		return err
	}
	if err := printResult(cmd.OutOrStdout(), validateFlags.format, res); err != nil {
		return err
	}
	if !res.Valid {
		return errInvalid
	}
	return nil
}

func openSource(stdin io.Reader, arg string, comma rune) (tableschema.Source, error) {
	switch {
	case arg == "-":
		data, err := io.ReadAll(stdin)
		if err != nil {
			return nil, fmt.Errorf("read stdin: %w", err)
		}
		return tableschema.ReaderSource{R: bytes.NewReader(data), Comma: comma}, nil
	case strings.HasPrefix(arg, "http://"), strings.HasPrefix(arg, "https://"):
		// a local run may read from the operator's own network
		client := tableschema.NewFetchClient(tableschema.FetchOptions{
			Timeout:      validateFlags.fetchTimeout,
			AllowPrivate: true,
		})
		return tableschema.URLSource{URL: arg, Client: client, Comma: comma}, nil
	}
	return tableschema.FileSource{Path: arg, Comma: comma}, nil
}

func parseHeadersRow(cmd *cobra.Command, v string, src tableschema.Source, schema *tableschema.Schema) (int, error) {
	if strings.EqualFold(v, "auto") {
		row, err := tableschema.DetectHeaderRow(cmd.Context(), src, schema)
		if err != nil {
			return 0, fmt.Errorf("detect header row: %w", err)
		}
		return row, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("--headers-row must be a number or auto, got %q", v)
	}
	return n, nil
}

func parseDelimiter(v string) (rune, error) {
	switch v {
	case "":
		return 0, nil
	case "tab", `\t`:
		return '\t', nil
	}
	r := []rune(v)
	if len(r) != 1 {
		return 0, fmt.Errorf("--delimiter must be a single character, got %q", v)
	}
	return r[0], nil
}

func printResult(w io.Writer, format string, res validator.Result) error {
	switch format {
	case "json":
		out, err := json.MarshalIndent(res, "", "  ")
		if err != nil {
			return err
		}
		_, err = fmt.Fprintln(w, string(out))
		return err
	case "text":
		if res.Valid {
			_, err := fmt.Fprintln(w, "valid")
			return err
		}
		for _, pe := range res.Errors {
			fmt.Fprintf(w, "row %d, col %d: %s\n", pe.Row, pe.Col, pe.Description)
		}
		_, err := fmt.Fprintf(w, "%d error(s)\n", len(res.Errors))
		return err
	}
	return fmt.Errorf("unknown format %q (want text or json)", format)
}
