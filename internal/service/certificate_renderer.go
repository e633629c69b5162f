package service

import (
	"bytes"
	"fmt"
	"image/color"
	"sync"

	"github.com/nehaa3012/LMS/internal/model"
	"github.com/nehaa3012/LMS/internal/util"
	"github.com/nehaa3012/LMS/pkg/logger"

	"github.com/fogleman/gg"
	"go.uber.org/zap"
)

const (
	certificateWidth  = 1600
	certificateHeight = 1131
)

// CertificateRenderer 把证书渲染成 PNG
type CertificateRenderer struct {
	FontPath string

	fontWarn sync.Once
}

// face 字体加载失败时保留默认字体，只告警一次
func (r *CertificateRenderer) face(dc *gg.Context, points float64) {
	if r.FontPath == "" {
		return
	}
	if err := dc.LoadFontFace(r.FontPath, points); err != nil {
		r.fontWarn.Do(func() {
			logger.Log.Warn("Certificate font unavailable, using built-in face",
				zap.String("font", r.FontPath),
				zap.Error(err),
			)
		})
	}
}

func (r *CertificateRenderer) Render(cert *model.Certificate, userName, courseTitle string) ([]byte, error) {
	w, h := float64(certificateWidth), float64(certificateHeight)
	dc := gg.NewContext(certificateWidth, certificateHeight)

	dc.SetColor(color.White)
	dc.DrawRectangle(0, 0, w, h)
	dc.Fill()

	dc.SetColor(color.NRGBA{R: 0x1f, G: 0x3a, B: 0x68, A: 0xff})
	dc.SetLineWidth(12)
	dc.DrawRectangle(40, 40, w-80, h-80)
	dc.Stroke()
	dc.SetLineWidth(2)
	dc.DrawRectangle(64, 64, w-128, h-128)
	dc.Stroke()

	r.face(dc, 64)
	dc.DrawStringAnchored("Certificate of Completion", w/2, h*0.22, 0.5, 0.5)

	dc.SetColor(color.NRGBA{R: 0x33, G: 0x33, B: 0x33, A: 0xff})
	r.face(dc, 30)
	dc.DrawStringAnchored("This certifies that", w/2, h*0.36, 0.5, 0.5)

	r.face(dc, 56)
	if userName == "" {
		userName = "Learner"
	}
	dc.DrawStringAnchored(userName, w/2, h*0.46, 0.5, 0.5)

	r.face(dc, 30)
	dc.DrawStringAnchored("has successfully completed", w/2, h*0.56, 0.5, 0.5)
	r.face(dc, 44)
	dc.DrawStringWrapped(courseTitle, w/2, h*0.64, 0.5, 0.5, w-320, 1.3, gg.AlignCenter)

	r.face(dc, 24)
	dc.DrawStringAnchored(fmt.Sprintf("Completed %s", cert.CompletionDate.Format(util.DateFormat)), w*0.28, h*0.84, 0.5, 0.5)
	dc.DrawStringAnchored(fmt.Sprintf("Issued %s", cert.IssueDate.Format(util.DateFormat)), w*0.72, h*0.84, 0.5, 0.5)
	dc.DrawStringAnchored(cert.CertificateNumber, w/2, h*0.9, 0.5, 0.5)

	var buf bytes.Buffer
	if err := dc.EncodePNG(&buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
