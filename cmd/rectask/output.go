//go:build linux

package main

import (
	"bytes"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"html/template"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/ja7ad/rectask/pkg/consumption"
	"github.com/ja7ad/rectask/pkg/enumerate"
	"github.com/ja7ad/rectask/pkg/orchestrator"
	"github.com/ja7ad/rectask/pkg/system/host"
	"github.com/ja7ad/rectask/pkg/system/proc"
	"github.com/ja7ad/rectask/pkg/types"
)

func printHeader(w io.Writer, info host.Info, rate consumption.PowerRate, now time.Time) {
	cpu := rate.ModelName
	if cpu == "" {
		cpu = "unknown"
	}
	fmt.Fprintf(w, _console,
		info.Hostname, info.Kernel, rate.CoreCount, info.TotalRAM.Humanized(),
		cpu, rate.MHz, rate.RateMilliwattHoursPerHour, now.Format("2006-01-02 15:04:05"))
}

// printReport writes the human summary of a run to w.
func printReport(w io.Writer, res enumerate.RunResult) {
	if res.Status == enumerate.EnergyExceeded {
		fmt.Fprintf(w, "Prime numbers found so far: %s\n", formatPrimes(res.Primes))
	} else {
		fmt.Fprintf(w, "Prime numbers between %d and %d: %s\n", res.Range.A, res.Range.B, formatPrimes(res.Primes))
	}
	fmt.Fprintf(w, "Total execution time (ms): %.3f\n", types.Millis(res.Elapsed))
	fmt.Fprintf(w, "Estimated energy consumption (mWh): %.3f\n", res.EnergyMilliwattHours)
	fmt.Fprintf(w, "Energy limit quota (mWh): %s\n", strconv.FormatFloat(res.Budget.LimitMilliwattHours, 'f', -1, 64))
	fmt.Fprintf(w, "Delta between limit quota and consumed energy (mWh): %.3f\n", res.DeltaMilliwattHours())
	if res.Status == enumerate.EnergyExceeded {
		fmt.Fprintln(w, "Program terminated due to exceeded mWh limit quota.")
	}
}

func formatPrimes(ps []int64) string {
	var sb strings.Builder
	sb.WriteByte('[')
	for i, p := range ps {
		if i > 0 {
			sb.WriteString(", ")
		}
		sb.WriteString(strconv.FormatInt(p, 10))
	}
	sb.WriteByte(']')
	return sb.String()
}

// printTable is the --pretty variant of printReport.
func printTable(w io.Writer, out orchestrator.Outcome) {
	res := out.Result
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "OUTCOME\tRANGE\tPRIMES\tTIME (ms)\tENERGY (mWh)\tQUOTA (mWh)\tDELTA (mWh)")
	fmt.Fprintln(tw, "-------\t-----\t------\t---------\t------------\t-----------\t-----------")
	fmt.Fprintf(tw, "%s\t%d..%d\t%d\t%.3f\t%.3f\t%.3f\t%.3f\n",
		out.State, res.Range.A, res.Range.B, len(res.Primes),
		types.Millis(res.Elapsed), res.EnergyMilliwattHours,
		res.Budget.LimitMilliwattHours, res.DeltaMilliwattHours())
	_ = tw.Flush()
}

// jsonReport is the document written by --json.
type jsonReport struct {
	Outcome string                `json:"outcome"`
	Hash    string                `json:"hash,omitempty"`
	Rate    consumption.PowerRate `json:"rate"`
	Result  enumerate.RunResult   `json:"result"`

	// Process is what the run actually used, when /proc could be read.
	Process *proc.Usage `json:"process,omitempty"`
}

func writeJSON(path string, out orchestrator.Outcome, rate consumption.PowerRate, usage *proc.Usage) error {
	f, err := create(path)
	if err != nil {
		return err
	}
	defer f.Close()

	enc := json.NewEncoder(f)
	enc.SetIndent("", "  ")
	if err := enc.Encode(jsonReport{
		Outcome: out.State.String(),
		Hash:    out.Hash,
		Rate:    rate,
		Result:  *out.Result,
		Process: usage,
	}); err != nil {
		return fmt.Errorf("write json: %w", err)
	}
	return nil
}

// writeSamples writes one CSV row per in-loop meter reading.
func writeSamples(w io.Writer, samples []enumerate.Sample) error {
	cw := csv.NewWriter(w)
	_ = cw.Write([]string{"iteration", "elapsed_ms", "energy_mwh", "primes_so_far"})
	for _, s := range samples {
		_ = cw.Write([]string{
			strconv.FormatInt(s.Iteration, 10),
			fmtFloat(types.Millis(s.Elapsed)),
			fmtFloat(s.EnergyMilliwattHours),
			strconv.Itoa(s.PrimesSoFar),
		})
	}
	cw.Flush()
	return cw.Error()
}

func writeCSV(path string, samples []enumerate.Sample) error {
	f, err := create(path)
	if err != nil {
		return err
	}
	defer f.Close()
	if err := writeSamples(f, samples); err != nil {
		return fmt.Errorf("write csv: %w", err)
	}
	return nil
}

func writeHTML(path string, out orchestrator.Outcome, info host.Info, rate consumption.PowerRate, usage *proc.Usage) error {
	type view struct {
		Outcome string
		Host    host.Info
		Rate    consumption.PowerRate
		Res     enumerate.RunResult
		Millis  float64
		Delta   float64
		Process *proc.Usage
	}

	var buf bytes.Buffer
	if err := tpl.Execute(&buf, view{
		Outcome: out.State.String(),
		Host:    info,
		Rate:    rate,
		Res:     *out.Result,
		Millis:  types.Millis(out.Result.Elapsed),
		Delta:   out.Result.DeltaMilliwattHours(),
		Process: usage,
	}); err != nil {
		return fmt.Errorf("render html: %w", err)
	}

	f, err := create(path)
	if err != nil {
		return err
	}
	defer f.Close()
	_, err = f.Write(buf.Bytes())
	return err
}

func create(path string) (*os.File, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, err
	}
	return os.Create(path)
}

func fmtFloat(v float64) string { return strconv.FormatFloat(v, 'f', 6, 64) }

var tpl = template.Must(template.New("rep").Funcs(template.FuncMap{
	"ms": types.Millis,
}).Parse(`<!doctype html>
<html lang="en"><meta charset="utf-8">
<title>rectask report</title>
<style>
body{font-family:system-ui,Segoe UI,Roboto,Helvetica,Arial,sans-serif;margin:20px}
h1,h2{margin:0 0 8px}
table{border-collapse:collapse;width:100%;font-size:14px}
th,td{border:1px solid #ddd;padding:6px 8px;text-align:right}
th:first-child,td:first-child{text-align:left}
ul{margin:6px 0 14px;padding-left:20px}
.small{color:#555}
.badge{display:inline-block;background:#eef;border:1px solid #ccd;padding:2px 6px;border-radius:6px;margin-right:6px;}
</style>

<h1>rectask report</h1>

<p class="small">
<span class="badge">{{.Outcome}}</span>
Range: {{.Res.Range.A}}..{{.Res.Range.B}} &nbsp;|&nbsp;
Primes: {{len .Res.Primes}} &nbsp;|&nbsp;
Energy: {{printf "%.3f" .Res.EnergyMilliwattHours}} mWh
</p>

<h2>Host</h2>
<ul>
<li>Host: {{.Host.Hostname}} ({{.Host.Kernel}})</li>
<li>CPU: {{.Rate.ModelName}} @ {{printf "%.0f" .Rate.MHz}} MHz, {{.Rate.CoreCount}} cores</li>
<li>RAM: {{printf "%.2f" .Rate.RAMGB}} GB</li>
<li>Rate: {{printf "%.3f" .Rate.RateMilliwattHoursPerHour}} mWh/h</li>
</ul>

<h2>Summary</h2>
<ul>
<li>Total execution time: {{printf "%.3f" .Millis}} ms</li>
<li>Estimated energy: {{printf "%.3f" .Res.EnergyMilliwattHours}} mWh</li>
<li>Quota: {{.Res.Budget.LimitMilliwattHours}} mWh</li>
<li>Delta: {{printf "%.3f" .Delta}} mWh</li>
{{with .Process}}
<li>CPU time: {{printf "%.3f" (ms .CPUTime)}} ms (user {{printf "%.3f" (ms .UserTime)}}, system {{printf "%.3f" (ms .SystemTime)}})</li>
<li>RSS: {{.RSS.Humanized}}</li>
{{end}}
</ul>

<h2>Samples</h2>
<table>
<thead>
<tr><th>iteration</th><th>elapsed (ms)</th><th>energy (mWh)</th><th>primes so far</th></tr>
</thead>
<tbody>
{{range .Res.Samples}}
<tr>
<td>{{.Iteration}}</td>
<td>{{printf "%.3f" (ms .Elapsed)}}</td>
<td>{{printf "%.3f" .EnergyMilliwattHours}}</td>
<td>{{.PrimesSoFar}}</td>
</tr>
{{end}}
</tbody>
</table>
</html>`))

const _console = `rectask - Energy-Bounded Prime Enumeration
Copyright (c) 2024 Javad Rajabzadeh Inc. All rights reserved.

       Host: %s
       Kernel: %s
       CPUs: %d
       Mem: %s
       Model: %s @ %.0f MHz
       Rate: %.3f mWh/h

rectask report as of %s:

`
