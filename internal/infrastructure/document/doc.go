// Package document renders the agreements users sign into PDF documents.
//
// Agreements are html/template documents printed to PDF by a headless Chrome driven
// through the DevTools protocol (chromedp). The browser is either started locally or
// reached through a remote DevTools endpoint.
//
// Example usage:
//
//	pdf, err := NewChromedpRenderer(ChromedpConfig{RemoteURL: "ws://chrome:9222"})
//	if err != nil {
//	    return err
//	}
//	defer pdf.Close()
//
//	agreements, err := NewAgreementRenderer(pdf)
//	content, err := agreements.RenderHostingAgreement(ctx, integration.HostingAgreement{...})
package document
