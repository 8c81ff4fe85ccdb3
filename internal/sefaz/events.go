// =============================================================================
// MDF-e Converter - Events
// =============================================================================
//
// Events change an authorized manifest after the fact. They all travel as
// eventoMDFe to MDFeRecepcaoEvento and differ only in their detEvento.
//
// EVENT TYPES:
//   110111 - Cancelamento       (evCancMDFe: nProt, xJust)
//   110112 - Encerramento       (evEncMDFe: nProt, dtEnc, cUF, cMun)
//   110114 - Inclusao Condutor  (evIncCondutorMDFe: condutor xNome, CPF)
//
// =============================================================================

package sefaz

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"
	"unicode"

	"github.com/beevik/etree"
	"github.com/samber/lo"
	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"

	"github.com/ginjaninja78/mdfe-converter/internal/mdfe"
)

// EventType is the tpEvento of an event.
type EventType string

const (
	EventCancel        EventType = "110111"
	EventClose         EventType = "110112"
	EventIncludeDriver EventType = "110114"
)

// SchemaEvent is the schema eventoMDFe is checked against.
const SchemaEvent = "eventoMDFe"

// Event status codes.
const (
	// StatusEventoRegistrado: event registered and linked to the MDF-e.
	StatusEventoRegistrado = "135"

	// StatusEventoNaoVinculado: event registered, MDF-e not found.
	StatusEventoNaoVinculado = "136"

	// StatusCancelamentoForaPrazo: cancellation registered out of term.
	StatusCancelamentoForaPrazo = "155"
)

var (
	ErrUnknownEvent     = errors.New("unknown event type")
	ErrInvalidEvent     = errors.New("invalid event")
	ErrNoEventReturn    = errors.New("no retEventoMDFe found")
	ErrEventRejected    = errors.New("event rejected")
	ErrEventNotMatching = errors.New("event return belongs to another event")
)

// descriptions holds the descEvento of every supported type.
var descriptions = map[EventType]string{
	EventCancel:        "Cancelamento",
	EventClose:         "Encerramento",
	EventIncludeDriver: "Inclusao Condutor",
}

// Description returns the descEvento of t.
func (t EventType) Description() string { return descriptions[t] }

// Event is one event on an authorized manifest. Fields not used by Type are
// ignored.
type Event struct {
	Type EventType

	// Key is the manifest's access key. Its first two digits pick cOrgao.
	Key string

	// Seq is nSeqEvento. 0 means 1.
	Seq int

	// At is dhEvento. Zero means the client's clock.
	At time.Time

	// Protocol is the authorization nProt, for cancel and close.
	Protocol string

	// Justification is xJust, for cancel. Accents are removed.
	Justification string

	// ClosedOn is dtEnc, for close. Zero means the day of At.
	ClosedOn time.Time

	// CUF and CMun name where the trip ended, for close.
	CUF  string
	CMun string

	// DriverName and DriverCPF, for include driver.
	DriverName string
	DriverCPF  string
}

// EventID is the infEvento Id: "ID", tpEvento, key and a 2-digit sequence.
func EventID(t EventType, key string, seq int) string {
	return fmt.Sprintf("ID%s%s%02d", t, key, seq)
}

// EventRequest builds eventoMDFe for ev and resolves MDFeRecepcaoEvento for
// the state of its key. The event is signed over infEvento/Id when the client
// has a Signer.
//
// RETURNS:
//   - ErrUnknownEvent for a type other than cancel, close or include driver.
//   - ErrInvalidEvent when a field the type needs is missing or malformed.
func (c *Client) EventRequest(ev Event) (Request, error) {
	if _, ok := descriptions[ev.Type]; !ok {
		return Request{}, fmt.Errorf("%w: %q", ErrUnknownEvent, ev.Type)
	}
	ev.Key = mdfe.DigitsOnly(ev.Key)
	if len(ev.Key) != mdfe.KeyLength {
		return Request{}, fmt.Errorf("%w: a %d-digit MDF-e key must be given, got %d digits", ErrInvalidEvent, mdfe.KeyLength, len(ev.Key))
	}
	if ev.Seq <= 0 {
		ev.Seq = 1
	}
	if ev.Seq > 99 {
		return Request{}, fmt.Errorf("%w: nSeqEvento %d has more than 2 digits", ErrInvalidEvent, ev.Seq)
	}
	if ev.At.IsZero() {
		ev.At = c.opts.Now()
	}

	uf, err := UFOfCode(ev.Key[:2])
	if err != nil {
		return Request{}, err
	}
	author := mdfe.DigitsOnly(c.opts.CNPJ)
	if len(author) != 14 && len(author) != 11 {
		return Request{}, fmt.Errorf("%w: the client needs the issuer's CNPJ or CPF, got %q", ErrInvalidEvent, c.opts.CNPJ)
	}

	var buildErr error
	req, err := c.request(ServiceRecepcaoEvento, uf, "", func(ep Endpoint) string {
		var body string
		body, buildErr = c.eventBody(ev, ep.Version, author)
		return body
	})
	if err != nil {
		return Request{}, err
	}
	if buildErr != nil {
		return Request{}, buildErr
	}

	if c.opts.Signer != nil {
		signed, err := c.opts.Signer.Sign(req.Body, "infEvento", "Id")
		if err != nil {
			return Request{}, fmt.Errorf("failed to sign event: %w", err)
		}
		req.Body = strings.TrimSpace(xmlDeclaration.ReplaceAllString(signed, ""))
	}
	if c.opts.Schemas != nil {
		if _, err := c.opts.Schemas.Validate(req.Body, SchemaEvent); err != nil {
			return Request{}, fmt.Errorf("%s: %w", SchemaEvent, err)
		}
	}
	return req, nil
}

// eventBody renders eventoMDFe. author is a CNPJ (14 digits) or CPF (11).
func (c *Client) eventBody(ev Event, version, author string) (string, error) {
	doc := etree.NewDocument()
	evento := doc.CreateElement("eventoMDFe")
	evento.CreateAttr("xmlns", mdfe.Namespace)
	evento.CreateAttr("versao", version)

	inf := evento.CreateElement("infEvento")
	inf.CreateAttr("Id", EventID(ev.Type, ev.Key, ev.Seq))
	inf.CreateElement("cOrgao").SetText(ev.Key[:2])
	inf.CreateElement("tpAmb").SetText(c.opts.Environment)
	if len(author) == 14 {
		inf.CreateElement("CNPJ").SetText(author)
	} else {
		inf.CreateElement("CPF").SetText(author)
	}
	inf.CreateElement("chMDFe").SetText(ev.Key)
	inf.CreateElement("dhEvento").SetText(ev.At.Format(mdfe.DateTimeLayout))
	inf.CreateElement("tpEvento").SetText(string(ev.Type))
	inf.CreateElement("nSeqEvento").SetText(strconv.Itoa(ev.Seq))

	det := inf.CreateElement("detEvento")
	det.CreateAttr("versaoEvento", version)
	if err := detail(det, ev); err != nil {
		return "", err
	}
	return doc.WriteToString()
}

// detail fills detEvento for the type of ev.
func detail(det *etree.Element, ev Event) error {
	switch ev.Type {
	case EventCancel:
		nProt := mdfe.DigitsOnly(ev.Protocol)
		if nProt == "" {
			return fmt.Errorf("%w: cancellation needs the authorization protocol", ErrInvalidEvent)
		}
		xJust := plainText(ev.Justification)
		if n := len(xJust); n < 15 || n > 255 {
			return fmt.Errorf("%w: xJust must have 15 to 255 characters, got %d", ErrInvalidEvent, n)
		}
		el := det.CreateElement("evCancMDFe")
		el.CreateElement("descEvento").SetText(ev.Type.Description())
		el.CreateElement("nProt").SetText(nProt)
		el.CreateElement("xJust").SetText(xJust)

	case EventClose:
		nProt := mdfe.DigitsOnly(ev.Protocol)
		if nProt == "" {
			return fmt.Errorf("%w: closing needs the authorization protocol", ErrInvalidEvent)
		}
		if len(ev.CUF) != 2 || len(ev.CMun) != 7 {
			return fmt.Errorf("%w: closing needs a 2-digit cUF and a 7-digit cMun, got %q and %q", ErrInvalidEvent, ev.CUF, ev.CMun)
		}
		closedOn := ev.ClosedOn
		if closedOn.IsZero() {
			closedOn = ev.At
		}
		el := det.CreateElement("evEncMDFe")
		el.CreateElement("descEvento").SetText(ev.Type.Description())
		el.CreateElement("nProt").SetText(nProt)
		el.CreateElement("dtEnc").SetText(closedOn.Format(time.DateOnly))
		el.CreateElement("cUF").SetText(ev.CUF)
		el.CreateElement("cMun").SetText(ev.CMun)

	case EventIncludeDriver:
		name := plainText(ev.DriverName)
		cpf := mdfe.DigitsOnly(ev.DriverCPF)
		if name == "" || len(cpf) != 11 {
			return fmt.Errorf("%w: the driver needs a name and an 11-digit CPF", ErrInvalidEvent)
		}
		el := det.CreateElement("evIncCondutorMDFe")
		el.CreateElement("descEvento").SetText(ev.Type.Description())
		condutor := el.CreateElement("condutor")
		condutor.CreateElement("xNome").SetText(name)
		condutor.CreateElement("CPF").SetText(cpf)
	}
	return nil
}

var accents = transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)

// plainText removes accents and surrounding spaces from free text.
func plainText(s string) string {
	out, _, err := transform.String(accents, s)
	if err != nil {
		out = s
	}
	return strings.TrimSpace(out)
}

// =============================================================================
// EVENT PROTOCOL
// =============================================================================

// AttachEventProtocol joins a sent eventoMDFe and the retEventoMDFe that
// registered it into a procEventoMDFe document. ret may be the authorizer's
// whole answer.
//
// RETURNS:
//   - ErrInvalidEvent when event carries no infEvento.
//   - ErrNoEventReturn when ret carries no retEventoMDFe.
//   - ErrEventNotMatching when the return names another key, type or
//     sequence.
//   - ErrEventRejected for a cStat other than 135 or 136 (or 155 for a
//     cancellation).
func AttachEventProtocol(event, ret string) (string, error) {
	evDoc := etree.NewDocument()
	if err := evDoc.ReadFromString(event); err != nil {
		return "", fmt.Errorf("failed to parse event: %w", err)
	}
	evento := evDoc.FindElement("//eventoMDFe")
	if evento == nil || evento.FindElement("infEvento") == nil {
		return "", fmt.Errorf("%w: no eventoMDFe/infEvento", ErrInvalidEvent)
	}
	inf := evento.FindElement("infEvento")

	retDoc := etree.NewDocument()
	if err := retDoc.ReadFromString(ret); err != nil {
		return "", fmt.Errorf("failed to parse event return: %w", err)
	}
	retEvento := retDoc.FindElement("//retEventoMDFe")
	if retEvento == nil {
		return "", ErrNoEventReturn
	}

	cStat := textOf(retEvento, ".//cStat")
	tpEvento := textOf(retEvento, ".//tpEvento")
	accepted := []string{StatusEventoRegistrado, StatusEventoNaoVinculado}
	if tpEvento == string(EventCancel) {
		accepted = append(accepted, StatusCancelamentoForaPrazo)
	}
	if !lo.Contains(accepted, cStat) {
		return "", fmt.Errorf("%w: [%s] %s", ErrEventRejected, cStat, textOf(retEvento, ".//xMotivo"))
	}

	for _, field := range []string{"chMDFe", "tpEvento", "nSeqEvento"} {
		want, got := textOf(inf, field), textOf(retEvento, ".//"+field)
		if got != "" && got != want {
			return "", fmt.Errorf("%w: %s %s != %s", ErrEventNotMatching, field, got, want)
		}
	}

	out := etree.NewDocument()
	out.CreateProcInst("xml", `version="1.0" encoding="UTF-8"`)
	proc := out.CreateElement("procEventoMDFe")
	proc.CreateAttr("versao", evento.SelectAttrValue("versao", ""))
	proc.CreateAttr("xmlns", mdfe.Namespace)
	proc.AddChild(evento.Copy())
	proc.AddChild(retEvento.Copy())

	return out.WriteToString()
}

// ErrNoCancellation is returned when a return registers no cancellation of
// the manifest.
var ErrNoCancellation = errors.New("no registered cancellation for the MDF-e")

// MarkCancelled rewrites the protMDFe of an authorized mdfeProc to cStat 101
// once ret registers its cancellation (cStat 135, tpEvento 110111, same key).
// ret may be a single retEventoMDFe or an answer carrying several.
func MarkCancelled(proc, ret string) (string, error) {
	doc := etree.NewDocument()
	if err := doc.ReadFromString(proc); err != nil {
		return "", fmt.Errorf("failed to parse MDF-e: %w", err)
	}
	if doc.FindElement("//MDFe") == nil {
		return "", ErrNotMDFe
	}
	infProt := doc.FindElement("//protMDFe/infProt")
	if infProt == nil {
		return "", ErrNoProtocol
	}
	key := textOf(infProt, "chMDFe")

	retDoc := etree.NewDocument()
	if err := retDoc.ReadFromString(ret); err != nil {
		return "", fmt.Errorf("failed to parse event return: %w", err)
	}
	cancelled := lo.ContainsBy(retDoc.FindElements("//retEventoMDFe/infEvento"), func(inf *etree.Element) bool {
		return textOf(inf, "cStat") == StatusEventoRegistrado &&
			textOf(inf, "tpEvento") == string(EventCancel) &&
			textOf(inf, "chMDFe") == key
	})
	if !cancelled {
		return "", fmt.Errorf("%w: %s", ErrNoCancellation, key)
	}

	setText(infProt, "cStat", StatusCancelado)
	setText(infProt, "xMotivo", "Cancelamento de MDF-e homologado")
	return doc.WriteToString()
}

func setText(el *etree.Element, tag, text string) {
	child := el.SelectElement(tag)
	if child == nil {
		child = el.CreateElement(tag)
	}
	child.SetText(text)
}
