package sefaz

import (
	"errors"
	"fmt"
	"strings"

	"github.com/beevik/etree"
)

// Status codes (cStat) returned by the MDF-e authorizer.
const (
	// StatusAutorizado: use of the MDF-e authorized.
	StatusAutorizado = "100"

	// StatusCancelado: cancellation registered.
	StatusCancelado = "101"

	// StatusLoteRecebido: lot received, query the receipt later.
	StatusLoteRecebido = "103"

	// StatusLoteProcessado: lot processed, protocols attached.
	StatusLoteProcessado = "104"

	// StatusLoteEmProcessamento: lot still being processed.
	StatusLoteEmProcessamento = "105"

	// StatusEmOperacao: service running.
	StatusEmOperacao = "107"

	// StatusEncerrado: closing registered.
	StatusEncerrado = "132"

	// StatusNaoEncontrado: key not in the authorizer's base.
	StatusNaoEncontrado = "217"
)

// Return is the parsed answer of any MDF-e service.
type Return struct {
	// Root is the name of the answer element (retEnviMDFe, ...).
	Root string

	TpAmb   string
	CStat   string
	XMotivo string

	// NRec is the receipt of a lot, when present.
	NRec string

	// Protocols holds every protMDFe found, serialized.
	Protocols []string

	// Raw is the answer as received.
	Raw string
}

// IsAuthorized reports whether cStat means the MDF-e was authorized.
func (r *Return) IsAuthorized() bool { return r.CStat == StatusAutorizado }

// IsRejected reports whether cStat is a rejection (2xx to 6xx).
func (r *Return) IsRejected() bool {
	if len(r.CStat) == 0 {
		return false
	}
	first := r.CStat[0]
	return first >= '2' && first <= '6'
}

// Pending reports whether a lot is still being processed.
func (r *Return) Pending() bool {
	return r.CStat == StatusLoteRecebido || r.CStat == StatusLoteEmProcessamento
}

func (r *Return) String() string {
	return fmt.Sprintf("[%s] %s", r.CStat, r.XMotivo)
}

// ParseReturn reads an answer. SOAP envelopes are searched for the first
// element carrying a cStat.
func ParseReturn(raw string) (*Return, error) {
	doc := etree.NewDocument()
	if err := doc.ReadFromString(raw); err != nil {
		return nil, fmt.Errorf("failed to parse return: %w", err)
	}

	cStat := doc.FindElement("//cStat")
	if cStat == nil {
		return nil, errors.New("return has no cStat")
	}
	root := cStat.Parent()

	r := &Return{
		Root:    root.Tag,
		TpAmb:   childText(root, "tpAmb"),
		CStat:   strings.TrimSpace(cStat.Text()),
		XMotivo: childText(root, "xMotivo"),
		Raw:     raw,
	}
	if rec := root.FindElement(".//nRec"); rec != nil {
		r.NRec = strings.TrimSpace(rec.Text())
	}

	for _, prot := range doc.FindElements("//protMDFe") {
		pd := etree.NewDocument()
		pd.SetRoot(prot.Copy())
		s, err := pd.WriteToString()
		if err != nil {
			return nil, err
		}
		r.Protocols = append(r.Protocols, s)
	}
	return r, nil
}

func childText(el *etree.Element, tag string) string {
	if c := el.SelectElement(tag); c != nil {
		return strings.TrimSpace(c.Text())
	}
	return ""
}
