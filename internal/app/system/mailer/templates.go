// internal/app/system/mailer/templates.go
package mailer

import (
	"bytes"
	"fmt"
	"html/template"
)

// AllocationFinishedData holds data for the allocation-finished notification.
type AllocationFinishedData struct {
	SiteName    string
	UnitName    string
	Succeeded   bool
	Status      string // human-readable, e.g. "Successful (Optimal)"
	ResultsLink string // empty when there are no results to view
}

// BuildAllocationFinishedEmail tells the unit manager how a run ended.
func BuildAllocationFinishedEmail(data AllocationFinishedData) Email {
	outcome := "failed"
	if data.Succeeded {
		outcome = "was successful"
	}
	return Email{
		To:       "", // Set by caller
		Subject:  fmt.Sprintf("%s: allocation for %s %s", data.SiteName, data.UnitName, outcome),
		TextBody: buildFinishedText(data, outcome),
		HTMLBody: render(finishedHTML, struct {
			AllocationFinishedData
			Outcome string
		}{data, outcome}),
	}
}

func buildFinishedText(data AllocationFinishedData, outcome string) string {
	var buf bytes.Buffer
	fmt.Fprintf(&buf, "The allocation of students to projects for %s %s.\n\n", data.UnitName, outcome)
	if data.Status != "" {
		fmt.Fprintf(&buf, "Status: %s\n\n", data.Status)
	}
	if data.Succeeded && data.ResultsLink != "" {
		buf.WriteString("View the results of the allocation:\n")
		buf.WriteString(data.ResultsLink + "\n")
	}
	return buf.String()
}

// AllocationResultsData holds data for the results email.
type AllocationResultsData struct {
	SiteName string
	UnitName string
	FileName string
	CSV      []byte
}

// BuildAllocationResultsEmail sends the committed allocation as a CSV attachment.
func BuildAllocationResultsEmail(data AllocationResultsData) Email {
	return Email{
		To:       "", // Set by caller
		Subject:  fmt.Sprintf("%s: allocation results for %s", data.SiteName, data.UnitName),
		TextBody: fmt.Sprintf("The allocation results for %s are attached as %s.\n", data.UnitName, data.FileName),
		Attachments: []Attachment{{
			Filename:    data.FileName,
			ContentType: "text/csv",
			Data:        data.CSV,
		}},
	}
}

var finishedHTML = template.Must(template.New("finished").Parse(`<!DOCTYPE html>
<html>
<head>
  <meta charset="UTF-8">
  <title>{{.SiteName}}</title>
</head>
<body style="margin: 0; padding: 24px; font-family: -apple-system, BlinkMacSystemFont, 'Segoe UI', Roboto, Arial, sans-serif; background-color: #f3f4f6;">
  <div style="max-width: 480px; margin: 0 auto; background-color: #ffffff; border-radius: 8px; padding: 32px;">
    <h1 style="margin: 0 0 24px; font-size: 20px; color: #4f46e5;">{{.SiteName}}</h1>
    <p style="font-size: 16px; color: #374151;">The allocation of students to projects for {{.UnitName}} {{.Outcome}}.</p>
    {{if .Status}}<p style="font-size: 14px; color: #6b7280;">Status: {{.Status}}</p>{{end}}
    {{if and .Succeeded .ResultsLink}}<p><a href="{{.ResultsLink}}">View the results of the allocation</a></p>{{end}}
  </div>
</body>
</html>`))

func render(t *template.Template, data interface{}) string {
	var buf bytes.Buffer
	_ = t.Execute(&buf, data)
	return buf.String()
}
