package convert

import (
	"context"
	"fmt"
	"net/url"
	"time"

	"github.com/chromedp/cdproto/page"
	"github.com/chromedp/chromedp"
	"github.com/sirupsen/logrus"
)

// ChromeConverter prints HTML to PDF with a headless Chromium and hands the
// bytes to an Uploader.
type ChromeConverter struct {
	ExecPath string
	Timeout  time.Duration
	Uploader Uploader
	Logger   logrus.FieldLogger

	// print replaces the browser in tests.
	print func(ctx context.Context, html string) ([]byte, error)
}

func NewChromeConverter(execPath string, timeout time.Duration, up Uploader, logger logrus.FieldLogger) *ChromeConverter {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	c := &ChromeConverter{ExecPath: execPath, Timeout: timeout, Uploader: up, Logger: logger}
	c.print = c.printPDF
	return c
}

func (c *ChromeConverter) Convert(ctx context.Context, req Request) (*Result, error) {
	if req.HTML == "" {
		return nil, fmt.Errorf("%w: empty html", ErrConversionFailed)
	}

	start := time.Now()
	pdf, err := c.print(ctx, req.HTML)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrConversionFailed, err)
	}

	path, err := c.Uploader.Upload(ctx, req.FileName, "application/pdf", pdf)
	if err != nil {
		return nil, fmt.Errorf("%w: upload: %v", ErrConversionFailed, err)
	}

	c.Logger.WithFields(logrus.Fields{
		"document":   req.DocumentType,
		"order_code": req.OrderCode,
		"bytes":      len(pdf),
		"took":       time.Since(start).String(),
	}).Info("document printed")

	return &Result{PathToFile: path, FileName: req.FileName}, nil
}

func (c *ChromeConverter) printPDF(ctx context.Context, html string) ([]byte, error) {
	allocOpts := append(chromedp.DefaultExecAllocatorOptions[:],
		chromedp.Flag("headless", true),
		chromedp.Flag("disable-gpu", true),
		chromedp.Flag("no-sandbox", true),
	)
	if c.ExecPath != "" {
		allocOpts = append(allocOpts, chromedp.ExecPath(c.ExecPath))
	}

	allocCtx, cancelAlloc := chromedp.NewExecAllocator(ctx, allocOpts...)
	defer cancelAlloc()

	runCtx, cancelRun := chromedp.NewContext(allocCtx)
	defer cancelRun()
	runCtx, cancelTimeout := context.WithTimeout(runCtx, c.Timeout)
	defer cancelTimeout()

	var buf []byte
	err := chromedp.Run(runCtx,
		chromedp.Navigate("data:text/html,"+url.PathEscape(html)),
		chromedp.ActionFunc(func(ctx context.Context) error {
			// A4 in inches.
			out, _, err := page.PrintToPDF().
				WithPrintBackground(true).
				WithPaperWidth(8.27).
				WithPaperHeight(11.69).
				Do(ctx)
			if err != nil {
				return err
			}
			buf = out
			return nil
		}),
	)
	if err != nil {
		return nil, fmt.Errorf("chromedp: %w", err)
	}
	return buf, nil
}
