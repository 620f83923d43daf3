package export

import (
	"bytes"
	"fmt"
	"time"

	"github.com/jung-kurt/gofpdf"
)

// PassDocument carries everything the renderer needs to draw a gate pass.
type PassDocument struct {
	PermissionID    string
	StudentName     string
	RollNumber      string
	Department      string
	Category        string
	Purpose         string
	ValidFrom       time.Time
	ValidTo         time.Time
	IssuedAt        time.Time
	VerificationURL string
}

// PassRenderer draws official gate passes.
type PassRenderer struct {
	collegeName string
	collegeAddr string
}

// NewPassRenderer constructs a renderer with institution branding.
func NewPassRenderer(collegeName, collegeAddr string) *PassRenderer {
	if collegeName == "" {
		collegeName = "MVGR COLLEGE OF ENGINEERING"
	}
	if collegeAddr == "" {
		collegeAddr = "Vizianagaram, Andhra Pradesh - 535005"
	}
	return &PassRenderer{collegeName: collegeName, collegeAddr: collegeAddr}
}

// Render produces the PDF bytes for an approved pass.
func (r *PassRenderer) Render(doc PassDocument) ([]byte, error) {
	if doc.PermissionID == "" {
		return nil, fmt.Errorf("pass requires a permission id")
	}

	pdf := gofpdf.New("P", "mm", "A4", "")
	pdf.SetMargins(15, 15, 15)
	pdf.AddPage()
	width, _ := pdf.GetPageSize()

	// Header banner.
	pdf.SetFillColor(30, 58, 138)
	pdf.Rect(0, 0, width, 45, "F")
	pdf.SetTextColor(255, 255, 255)
	pdf.SetFont("Helvetica", "B", 20)
	pdf.SetXY(0, 10)
	pdf.CellFormat(width, 10, r.collegeName, "", 1, "C", false, 0, "")
	pdf.SetFont("Helvetica", "", 10)
	pdf.CellFormat(width, 6, r.collegeAddr, "", 1, "C", false, 0, "")
	pdf.SetFont("Helvetica", "B", 13)
	pdf.CellFormat(width, 10, "OFFICIAL CAMPUS GATE PASS", "", 1, "C", false, 0, "")

	issued := doc.IssuedAt
	if issued.IsZero() {
		issued = time.Now()
	}
	pdf.SetTextColor(15, 23, 42)
	pdf.SetFont("Helvetica", "", 9)
	pdf.SetXY(15, 52)
	pdf.CellFormat(width-30, 6, fmt.Sprintf("ISSUED: %s", issued.Format("02 Jan 2006 15:04")), "", 1, "R", false, 0, "")

	// Student details box.
	startY := 62.0
	pdf.SetDrawColor(200, 200, 200)
	pdf.SetFillColor(248, 250, 252)
	pdf.Rect(15, startY, width-30, 72, "FD")

	y := startY + 10
	row := func(label, value string) {
		pdf.SetFont("Helvetica", "B", 9)
		pdf.SetTextColor(100, 116, 139)
		pdf.SetXY(22, y)
		pdf.CellFormat(45, 6, label, "", 0, "", false, 0, "")
		pdf.SetFont("Helvetica", "B", 10)
		pdf.SetTextColor(15, 23, 42)
		if value == "" {
			value = "-"
		}
		pdf.CellFormat(0, 6, value, "", 1, "", false, 0, "")
		y += 11
	}

	row("STUDENT NAME", doc.StudentName)
	row("ROLL NUMBER", doc.RollNumber)
	row("DEPARTMENT", doc.Department)
	row("VALID FROM", doc.ValidFrom.Format("Mon, 02 Jan 2006"))
	row("VALID TO", doc.ValidTo.Format("Mon, 02 Jan 2006"))
	row("CATEGORY", doc.Category)

	// Purpose section.
	y += 4
	pdf.SetFont("Helvetica", "B", 9)
	pdf.SetTextColor(100, 116, 139)
	pdf.SetXY(22, y)
	pdf.CellFormat(0, 6, "AUTHORIZED PURPOSE / DESTINATION:", "", 1, "", false, 0, "")
	pdf.SetFont("Helvetica", "", 10)
	pdf.SetTextColor(15, 23, 42)
	pdf.SetXY(22, y+7)
	pdf.MultiCell(width-44, 5, doc.Purpose, "", "", false)

	// Verification footer: the guard app scans the QR payload below.
	pdf.SetY(-50)
	pdf.SetFont("Helvetica", "B", 9)
	pdf.SetTextColor(100, 116, 139)
	pdf.CellFormat(0, 5, "SCAN TO VERIFY", "", 1, "C", false, 0, "")
	pdf.SetFont("Courier", "", 7)
	pdf.MultiCell(0, 4, doc.VerificationURL, "", "C", false)
	pdf.SetFont("Helvetica", "", 7)
	pdf.SetTextColor(148, 163, 184)
	pdf.CellFormat(0, 5, fmt.Sprintf("PASS ID: %s", doc.PermissionID), "", 1, "C", false, 0, "")

	buf := &bytes.Buffer{}
	if err := pdf.Output(buf); err != nil {
		return nil, fmt.Errorf("render pass pdf: %w", err)
	}
	return buf.Bytes(), nil
}
