// =============================================================================
// MDF-e Converter - Request Envelopes
// =============================================================================
//
// Every request to the authorizer is a small XML message wrapped in
// mdfeDadosMsg, with cUF and versaoDados travelling in the mdfeCabecMsg
// header. This module builds both; moving them over SOAP is the job of a
// Transport.
//
// MESSAGES:
//   enviMDFe          - MDFeRecepcao       (lot of signed manifests)
//   consReciMDFe      - MDFeRetRecepcao    (lot receipt query)
//   consSitMDFe       - MDFeConsulta       (situation by access key)
//   consStatServMDFe  - MDFeStatusServico  (service status)
//   consMDFeNaoEnc    - MDFeConsNaoEnc     (open manifests of a CNPJ)
//   eventoMDFe        - MDFeRecepcaoEvento (cancel, close, include driver)
//
// =============================================================================

package sefaz

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/samber/lo"

	"github.com/ginjaninja78/mdfe-converter/internal/mdfe"
	"github.com/ginjaninja78/mdfe-converter/internal/validation"
)

// =============================================================================
// REQUEST
// =============================================================================

// Request is one message ready for a Transport.
type Request struct {
	Endpoint Endpoint

	// CUF is the header's cUF.
	CUF string

	// Body is the bare message (enviMDFe, consSitMDFe, ...).
	Body string
}

// Message wraps Body in mdfeDadosMsg.
func (r Request) Message() string {
	return fmt.Sprintf(`<mdfeDadosMsg xmlns="%s">%s</mdfeDadosMsg>`, r.Endpoint.Namespace(), r.Body)
}

// Header is the mdfeCabecMsg SOAP header.
func (r Request) Header() string {
	return fmt.Sprintf(`<mdfeCabecMsg xmlns="%s"><cUF>%s</cUF><versaoDados>%s</versaoDados></mdfeCabecMsg>`,
		r.Endpoint.Namespace(), r.CUF, r.Endpoint.Version)
}

// Transport delivers a request and returns the raw response body.
type Transport interface {
	Send(ctx context.Context, req Request) (string, error)
}

// ErrNoTransport is returned by Client.Send when no Transport was given.
var ErrNoTransport = errors.New("no transport configured")

// =============================================================================
// CLIENT
// =============================================================================

// ClientOptions configures a Client.
type ClientOptions struct {
	// UF is the issuer's state.
	UF string

	// CNPJ is the issuer's CNPJ (or CPF), the author of events.
	CNPJ string

	// Environment is tpAmb, "1" or "2".
	Environment string

	// Model defaults to 58.
	Model string

	// Schemas validates outgoing messages when set.
	Schemas validation.SchemaValidator

	Transport Transport

	// Signer signs events. nil sends them unsigned.
	Signer Signer

	// Now is the clock used for dhEvento. Default: time.Now
	Now func() time.Time

	// NewLotID generates idLote when the caller gives none.
	NewLotID func() string
}

// Client builds and sends requests for one issuer.
type Client struct {
	ws   *Webservices
	opts ClientOptions
}

// NewClient creates a Client over ws.
func NewClient(ws *Webservices, opts ClientOptions) *Client {
	if opts.Environment == "" {
		opts.Environment = mdfe.EnvHomologation
	}
	if opts.Model == "" {
		opts.Model = mdfe.DefaultModel
	}
	if opts.NewLotID == nil {
		opts.NewLotID = newLotID
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	opts.UF = strings.ToUpper(strings.TrimSpace(opts.UF))
	return &Client{ws: ws, opts: opts}
}

// newLotID derives a 15-digit idLote from a random UUID.
func newLotID() string {
	return fmt.Sprintf("%015d", uuid.New().ID())
}

var xmlDeclaration = regexp.MustCompile(`<\?xml.*?\?>`)

// LotRequest builds enviMDFe for signed documents. Their XML declarations are
// removed.
func (c *Client) LotRequest(docs []string, idLote string) (Request, error) {
	if len(docs) == 0 {
		return Request{}, errors.New("at least one MDF-e must be given")
	}
	if idLote == "" {
		idLote = c.opts.NewLotID()
	}

	body := strings.Join(lo.Map(docs, func(d string, _ int) string {
		return strings.TrimSpace(xmlDeclaration.ReplaceAllString(d, ""))
	}), "")

	return c.request(ServiceRecepcao, c.opts.UF, "enviMDFe", func(ep Endpoint) string {
		return fmt.Sprintf(`<enviMDFe xmlns="%s" versao="%s"><idLote>%s</idLote>%s</enviMDFe>`,
			mdfe.Namespace, ep.Version, idLote, body)
	})
}

// ReceiptRequest builds consReciMDFe for a lot receipt.
func (c *Client) ReceiptRequest(nRec string) (Request, error) {
	if strings.TrimSpace(nRec) == "" {
		return Request{}, errors.New("a receipt number must be given")
	}
	return c.request(ServiceRetRecepcao, c.opts.UF, "consReciMDFe", func(ep Endpoint) string {
		return fmt.Sprintf(`<consReciMDFe xmlns="%s" versao="%s"><tpAmb>%s</tpAmb><nRec>%s</nRec></consReciMDFe>`,
			mdfe.Namespace, ep.Version, c.opts.Environment, nRec)
	})
}

// SituationRequest builds consSitMDFe. The key's first two digits pick the
// state.
func (c *Client) SituationRequest(key string) (Request, error) {
	key = mdfe.DigitsOnly(key)
	if len(key) != mdfe.KeyLength {
		return Request{}, fmt.Errorf("a %d-digit MDF-e key must be given, got %d digits", mdfe.KeyLength, len(key))
	}
	uf, err := UFOfCode(key[:2])
	if err != nil {
		return Request{}, err
	}
	return c.request(ServiceConsulta, uf, "consSitMDFe", func(ep Endpoint) string {
		return fmt.Sprintf(`<consSitMDFe xmlns="%s" versao="%s"><tpAmb>%s</tpAmb><xServ>CONSULTAR</xServ><chMDFe>%s</chMDFe></consSitMDFe>`,
			mdfe.Namespace, ep.Version, c.opts.Environment, key)
	})
}

// StatusRequest builds consStatServMDFe. An empty uf means the client's.
func (c *Client) StatusRequest(uf string) (Request, error) {
	if uf == "" {
		uf = c.opts.UF
	}
	return c.request(ServiceStatusServico, uf, "", func(ep Endpoint) string {
		return fmt.Sprintf(`<consStatServMDFe xmlns="%s" versao="%s"><tpAmb>%s</tpAmb><xServ>STATUS</xServ></consStatServMDFe>`,
			mdfe.Namespace, ep.Version, c.opts.Environment)
	})
}

// NotClosedRequest builds consMDFeNaoEnc for the manifests of cnpj still open.
func (c *Client) NotClosedRequest(cnpj string) (Request, error) {
	cnpj = mdfe.DigitsOnly(cnpj)
	if len(cnpj) != 14 {
		return Request{}, fmt.Errorf("a 14-digit CNPJ must be given, got %q", cnpj)
	}
	return c.request(ServiceConsNaoEnc, c.opts.UF, "", func(ep Endpoint) string {
		return fmt.Sprintf(`<consMDFeNaoEnc xmlns="%s" versao="%s"><tpAmb>%s</tpAmb><xServ>CONSULTAR NÃO ENCERRADOS</xServ><CNPJ>%s</CNPJ></consMDFeNaoEnc>`,
			mdfe.Namespace, ep.Version, c.opts.Environment, cnpj)
	})
}

// request resolves service and builds its body. schema names the XSD the
// body is checked against, "" for none.
func (c *Client) request(service, uf, schema string, body func(Endpoint) string) (Request, error) {
	ep, err := c.ws.Resolve(service, uf, c.opts.Environment, c.opts.Model)
	if err != nil {
		return Request{}, err
	}
	cuf, err := CodeOfUF(uf)
	if err != nil {
		return Request{}, err
	}

	req := Request{Endpoint: ep, CUF: cuf, Body: body(ep)}
	if schema != "" && c.opts.Schemas != nil {
		if _, err := c.opts.Schemas.Validate(req.Body, schema); err != nil {
			return Request{}, fmt.Errorf("%s: %w", schema, err)
		}
	}
	return req, nil
}

// Send delivers req and parses the authorizer's answer.
func (c *Client) Send(ctx context.Context, req Request) (*Return, error) {
	if c.opts.Transport == nil {
		return nil, ErrNoTransport
	}
	raw, err := c.opts.Transport.Send(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", req.Endpoint.Service, err)
	}
	return ParseReturn(raw)
}
