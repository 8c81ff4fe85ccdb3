package sefaz

import (
	"errors"
	"fmt"
	"strings"

	"github.com/beevik/etree"

	"github.com/ginjaninja78/mdfe-converter/internal/mdfe"
)

var (
	ErrNotMDFe        = errors.New("document is not an MDF-e")
	ErrNotSigned      = errors.New("MDF-e is not signed")
	ErrNoProtocol     = errors.New("no authorization protocol found")
	ErrDigestMismatch = errors.New("DigestValue of the MDF-e does not match the protocol's digVal")
	ErrKeyNotMatching = errors.New("protocol belongs to another MDF-e")
)

// AttachProtocol joins a signed MDF-e and the protMDFe of its authorization
// into an mdfeProc document. prot may be the authorizer's whole answer.
//
// RETURNS:
//   - ErrNotMDFe or ErrNotSigned when signed is not a signed manifest.
//   - ErrNoProtocol when prot carries no protMDFe.
//   - ErrDigestMismatch or ErrKeyNotMatching when no protocol belongs to the
//     document.
func AttachProtocol(signed, prot string) (string, error) {
	doc := etree.NewDocument()
	if err := doc.ReadFromString(signed); err != nil {
		return "", fmt.Errorf("failed to parse MDF-e: %w", err)
	}
	node := doc.FindElement("//MDFe")
	if node == nil {
		return "", ErrNotMDFe
	}
	if node.FindElement(".//Signature") == nil {
		return "", ErrNotSigned
	}
	inf := node.FindElement(".//infMDFe")
	if inf == nil {
		return "", ErrNotMDFe
	}

	key := mdfe.DigitsOnly(inf.SelectAttrValue("Id", ""))
	version := inf.SelectAttrValue("versao", "")
	digest := textOf(node, ".//DigestValue")

	protDoc := etree.NewDocument()
	if err := protDoc.ReadFromString(prot); err != nil {
		return "", fmt.Errorf("failed to parse protocol: %w", err)
	}
	prots := protDoc.FindElements("//protMDFe")
	if len(prots) == 0 {
		return "", ErrNoProtocol
	}

	var (
		protVersion, protKey, protDigest string
		infProt                          *etree.Element
	)
	for _, p := range prots {
		protVersion = p.SelectAttrValue("versao", "")
		protKey = textOf(p, ".//chMDFe")
		protDigest = textOf(p, ".//digVal")
		infProt = p.FindElement(".//infProt")
		if protDigest == digest && protKey == key {
			break
		}
	}
	if protDigest != digest {
		return "", ErrDigestMismatch
	}
	if protKey != key {
		return "", fmt.Errorf("%w: %s != %s", ErrKeyNotMatching, protKey, key)
	}
	if infProt == nil {
		return "", fmt.Errorf("%w: protMDFe has no infProt", ErrNoProtocol)
	}

	out := etree.NewDocument()
	out.CreateProcInst("xml", `version="1.0" encoding="UTF-8"`)
	proc := out.CreateElement("mdfeProc")
	proc.CreateAttr("versao", protVersion)
	proc.CreateAttr("xmlns", mdfe.Namespace)
	proc.AddChild(node.Copy())

	protMDFe := proc.CreateElement("protMDFe")
	protMDFe.CreateAttr("versao", version)
	protMDFe.AddChild(infProt.Copy())

	return out.WriteToString()
}

func textOf(el *etree.Element, path string) string {
	if found := el.FindElement(path); found != nil {
		return strings.TrimSpace(found.Text())
	}
	return ""
}
