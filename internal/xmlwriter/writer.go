// =============================================================================
// MDF-e Converter - XML Writer Module
// =============================================================================
//
// This module serializes a finished mdfe.Document into the canonical XML the
// tax authority expects. Element order is fixed by the schema, not by the
// order lines arrived in:
//
//   <MDFe xmlns="http://www.portalfiscal.inf.br/mdfe">
//     <infMDFe Id="MDFe..." versao="3.00">
//       <ide>...</ide>
//       <emit>...</emit>
//       <infModal versaoModal="3.00"><rodo>...</rodo></infModal>
//       <infDoc><infMunDescarga>...</infMunDescarga></infDoc>
//       <seg>...</seg>                    <!-- 0..n -->
//       <tot>...</tot>
//       <lacres>...</lacres>              <!-- 0..n -->
//       <autXML>...</autXML>              <!-- 0..n -->
//       <infAdic>...</infAdic>            <!-- optional -->
//       <infRespTec>...</infRespTec>      <!-- optional -->
//     </infMDFe>
//   </MDFe>
//
// RULES:
//   - A required element with an empty value fails with a MissingFieldError
//     naming its group and field. Nothing is written in that case.
//   - An optional element with an empty value is omitted.
//   - An optional group with no content is omitted.
//   - Lists keep insertion order.
//
// =============================================================================

package xmlwriter

import (
	"bytes"
	"encoding/xml"
	"fmt"

	"github.com/ginjaninja78/mdfe-converter/internal/mdfe"
)

// =============================================================================
// XML GENERATION OPTIONS
// =============================================================================

// GenerateOptions contains options for XML generation.
type GenerateOptions struct {
	// Indent is the string used for indentation. Empty means compact output,
	// which is what the signer and the tax authority expect.
	// Default: ""
	Indent string

	// IncludeXMLDeclaration determines whether to include the XML declaration.
	// Default: true
	IncludeXMLDeclaration bool

	// XMLVersion is the XML version for the declaration.
	// Default: "1.0"
	XMLVersion string

	// Encoding is the encoding for the XML declaration.
	// Default: "UTF-8"
	Encoding string

	// ModalVersion is the versaoModal attribute of infModal. Empty means the
	// document version.
	ModalVersion string
}

// DefaultGenerateOptions returns the default generation options.
func DefaultGenerateOptions() GenerateOptions {
	return GenerateOptions{
		Indent:                "",
		IncludeXMLDeclaration: true,
		XMLVersion:            "1.0",
		Encoding:              "UTF-8",
	}
}

// =============================================================================
// XML GENERATION FUNCTIONS
// =============================================================================

// Generate serializes doc with the default options.
//
// PARAMETERS:
//   - doc: A document returned by Builder.Finish, normally after Reconcile.
//
// RETURNS:
//   - The XML text.
//   - A MissingFieldError (errors.Is mdfe.ErrMissingRequiredField) when a
//     required element or container is empty.
func Generate(doc *mdfe.Document) (string, error) {
	return GenerateWithOptions(doc, DefaultGenerateOptions())
}

// GenerateWithOptions serializes doc with custom options.
func GenerateWithOptions(doc *mdfe.Document, options GenerateOptions) (string, error) {
	root, err := BuildTree(doc, options)
	if err != nil {
		return "", err
	}

	var buffer bytes.Buffer
	if options.IncludeXMLDeclaration {
		buffer.WriteString(fmt.Sprintf("<?xml version=\"%s\" encoding=\"%s\"?>",
			options.XMLVersion, options.Encoding))
		if options.Indent != "" {
			buffer.WriteString("\n")
		}
	}

	writeElement(&buffer, root, options.Indent, 0)
	return buffer.String(), nil
}

// =============================================================================
// XML ELEMENT TREE
// =============================================================================

// XMLElement represents a generic XML element.
type XMLElement struct {
	XMLName    xml.Name
	Attributes []xml.Attr
	Value      string
	Children   []XMLElement
}

// Child returns the first direct child named name.
func (e XMLElement) Child(name string) (XMLElement, bool) {
	for _, c := range e.Children {
		if c.XMLName.Local == name {
			return c, true
		}
	}
	return XMLElement{}, false
}

// group collects the children of one element and remembers the first
// required value that was missing. Once an error is recorded every further
// call is a no-op, so callers check it once at the end.
type group struct {
	el  XMLElement
	err error
}

func newGroup(name string, attrs ...xml.Attr) *group {
	return &group{el: XMLElement{XMLName: xml.Name{Local: name}, Attributes: attrs}}
}

func (g *group) name() string { return g.el.XMLName.Local }

// req appends a required leaf.
func (g *group) req(tag, value string) {
	if g.err != nil {
		return
	}
	if value == "" {
		g.err = mdfe.Missing(g.name(), tag)
		return
	}
	g.el.Children = append(g.el.Children, createSimpleElement(tag, value))
}

// opt appends a leaf only when it has a value.
func (g *group) opt(tag, value string) {
	if g.err != nil || value == "" {
		return
	}
	g.el.Children = append(g.el.Children, createSimpleElement(tag, value))
}

// add appends a child group, adopting its error.
func (g *group) add(child *group) {
	if g.err != nil {
		return
	}
	if child.err != nil {
		g.err = child.err
		return
	}
	g.el.Children = append(g.el.Children, child.el)
}

// addIfAny appends child only when it has content.
func (g *group) addIfAny(child *group) {
	if child.err == nil && len(child.el.Children) == 0 && child.el.Value == "" {
		return
	}
	g.add(child)
}

// missing records a MissingFieldError for a container that has nothing to
// hold.
func (g *group) missing(groupName, field string) {
	if g.err == nil {
		g.err = mdfe.Missing(groupName, field)
	}
}

func (g *group) result() (XMLElement, error) {
	return g.el, g.err
}

// =============================================================================
// DOCUMENT BUILDING
// =============================================================================

// BuildTree turns doc into an element tree rooted at MDFe.
func BuildTree(doc *mdfe.Document, options GenerateOptions) (XMLElement, error) {
	if doc == nil {
		return XMLElement{}, mdfe.Missing("MDFe", "infMDFe")
	}

	inf := newGroup("infMDFe",
		attr("Id", doc.ID),
		attr("versao", doc.Version),
	)
	if doc.ID == "" {
		inf.missing("infMDFe", "Id")
	}
	if doc.Version == "" {
		inf.missing("infMDFe", "versao")
	}

	if doc.Ide == nil {
		inf.missing("infMDFe", "ide")
	} else {
		inf.add(buildIde(doc.Ide))
	}

	if doc.Emit == nil {
		inf.missing("infMDFe", "emit")
	} else {
		inf.add(buildEmit(doc.Emit))
	}

	modalVersion := options.ModalVersion
	if modalVersion == "" {
		modalVersion = doc.Version
	}
	modal := newGroup("infModal", attr("versaoModal", modalVersion))
	if doc.Road == nil {
		modal.missing("infModal", "rodo")
	} else {
		modal.add(buildRoad(doc.Road))
	}
	inf.add(modal)

	infDoc := newGroup("infDoc")
	if len(doc.Discharges) == 0 {
		infDoc.missing("infDoc", "infMunDescarga")
	}
	for _, d := range doc.Discharges {
		infDoc.add(buildDischarge(d))
	}
	inf.add(infDoc)

	for _, s := range doc.Insurance {
		inf.add(buildInsurance(s))
	}

	if doc.Totals == nil {
		inf.missing("infMDFe", "tot")
	} else {
		inf.add(buildTotals(doc.Totals))
	}

	for _, n := range doc.Seals {
		lacres := newGroup("lacres")
		lacres.req("nLacre", n)
		inf.add(lacres)
	}

	for _, p := range doc.Downloaders {
		aut := newGroup("autXML")
		aut.opt("CNPJ", p.CNPJ)
		aut.opt("CPF", p.CPF)
		if p.CNPJ == "" && p.CPF == "" {
			aut.req("CNPJ", "")
		}
		inf.add(aut)
	}

	if a := doc.AdditionalInfo; a != nil {
		adic := newGroup("infAdic")
		adic.opt("infAdFisco", a.InfAdFisco)
		adic.opt("infCpl", a.InfCpl)
		inf.addIfAny(adic)
	}

	if t := doc.TechResponsible; t != nil {
		inf.add(buildTechResponsible(t))
	}

	root := newGroup("MDFe", attr("xmlns", mdfe.Namespace))
	root.add(inf)
	return root.result()
}

func buildIde(ide *mdfe.Identification) *group {
	g := newGroup("ide")
	g.req("cUF", ide.CUF)
	g.req("tpAmb", ide.TpAmb)
	g.req("tpEmit", ide.TpEmit)
	g.opt("tpTransp", ide.TpTransp)
	g.req("mod", ide.Mod)
	g.req("serie", mdfe.TrimLeadingZeros(ide.Serie))
	g.req("nMDF", mdfe.TrimLeadingZeros(ide.NMDF))
	g.req("cMDF", ide.CMDF)
	g.req("cDV", ide.CDV)
	g.req("modal", ide.Modal)
	g.req("dhEmi", ide.DhEmi)
	g.req("tpEmis", ide.TpEmis)
	g.req("procEmi", ide.ProcEmi)
	g.req("verProc", ide.VerProc)
	g.req("UFIni", ide.UFIni)
	g.req("UFFim", ide.UFFim)

	for _, m := range ide.InfMunCarrega {
		c := newGroup("infMunCarrega")
		c.req("cMunCarrega", m.CMunCarrega)
		c.req("xMunCarrega", m.XMunCarrega)
		g.add(c)
	}
	for _, uf := range ide.InfPercurso {
		p := newGroup("infPercurso")
		p.req("UFPer", uf)
		g.add(p)
	}

	g.opt("dhIniViagem", ide.DhIniViagem)
	g.opt("indCanalVerde", ide.IndCanalVerde)
	return g
}

func buildEmit(e *mdfe.Issuer) *group {
	g := newGroup("emit")
	switch {
	case e.CNPJ != "":
		g.req("CNPJ", e.CNPJ)
	case e.CPF != "":
		g.req("CPF", e.CPF)
	default:
		g.req("CNPJ", "")
	}
	g.req("IE", e.IE)
	g.req("xNome", e.XNome)
	g.opt("xFant", e.XFant)

	if e.EnderEmit == nil {
		g.req("enderEmit", "")
		return g
	}
	a := e.EnderEmit
	ender := newGroup("enderEmit")
	ender.req("xLgr", a.XLgr)
	ender.req("nro", a.Nro)
	ender.opt("xCpl", a.XCpl)
	ender.req("xBairro", a.XBairro)
	ender.req("cMun", a.CMun)
	ender.req("xMun", a.XMun)
	ender.req("CEP", a.CEP)
	ender.req("UF", a.UF)
	ender.opt("fone", a.Fone)
	ender.opt("email", a.Email)
	g.add(ender)
	return g
}

// =============================================================================
// DISCHARGE MUNICIPALITIES
// =============================================================================

func buildDischarge(d mdfe.Discharge) *group {
	g := newGroup("infMunDescarga")
	g.req("cMunDescarga", d.CMunDescarga)
	g.req("xMunDescarga", d.XMunDescarga)
	for _, refs := range [][]mdfe.FiscalRef{d.InfCTe, d.InfNFe, d.InfMDFeTransp} {
		for _, r := range refs {
			g.add(buildReference(r))
		}
	}
	return g
}

func buildReference(r mdfe.FiscalRef) *group {
	g := newGroup(r.Kind.Element())
	g.req(r.Kind.KeyElement(), r.Key)
	if r.Kind != mdfe.RefMDFe {
		g.opt("SegCodBarra", r.SegCodBarra)
	}
	g.opt("indReentrega", r.IndReentrega)

	for _, u := range r.TransportUnits {
		g.add(buildTransportUnit(u))
	}
	for _, h := range r.Hazards {
		g.add(buildHazard(h))
	}
	if p := r.PartialDelivery; p != nil && r.Kind == mdfe.RefCTe {
		part := newGroup("infEntregaParcial")
		part.req("qtdTotal", p.QtdTotal)
		part.req("qtdParcial", p.QtdParcial)
		g.add(part)
	}
	return g
}

func buildTransportUnit(u mdfe.TransportUnit) *group {
	g := newGroup("infUnidTransp")
	g.req("tpUnidTransp", u.TpUnidTransp)
	g.req("idUnidTransp", u.IdUnidTransp)
	for _, n := range u.LacUnidTransp {
		lac := newGroup("lacUnidTransp")
		lac.req("nLacre", n)
		g.add(lac)
	}
	for _, c := range u.InfUnidCarga {
		cargo := newGroup("infUnidCarga")
		cargo.req("tpUnidCarga", c.TpUnidCarga)
		cargo.req("idUnidCarga", c.IdUnidCarga)
		for _, n := range c.LacUnidCarga {
			lac := newGroup("lacUnidCarga")
			lac.req("nLacre", n)
			cargo.add(lac)
		}
		cargo.opt("qtdRat", c.QtdRat)
		g.add(cargo)
	}
	g.opt("qtdRat", u.QtdRat)
	return g
}

func buildHazard(h mdfe.Hazard) *group {
	g := newGroup("peri")
	g.req("nONU", h.NONU)
	g.opt("xNomeAE", h.XNomeAE)
	g.opt("xClaRisco", h.XClaRisco)
	g.opt("grEmb", h.GrEmb)
	g.req("qTotProd", h.QTotProd)
	g.opt("qVolTipo", h.QVolTipo)
	return g
}

// =============================================================================
// INSURANCE, TOTALS, TECHNICAL RESPONSIBLE
// =============================================================================

func buildInsurance(s mdfe.Insurance) *group {
	g := newGroup("seg")

	if s.InfResp == nil {
		g.req("infResp", "")
		return g
	}
	resp := newGroup("infResp")
	resp.req("respSeg", s.InfResp.RespSeg)
	resp.opt("CNPJ", s.InfResp.CNPJ)
	resp.opt("CPF", s.InfResp.CPF)
	g.add(resp)

	if s.InfSeg != nil {
		seg := newGroup("infSeg")
		seg.req("xSeg", s.InfSeg.XSeg)
		seg.req("CNPJ", s.InfSeg.CNPJ)
		g.add(seg)
	}

	g.opt("nApol", s.NApol)
	g.opt("nAver", s.NAver)
	return g
}

func buildTotals(t *mdfe.Totals) *group {
	g := newGroup("tot")
	g.opt("qCTe", t.QCTe)
	g.opt("qNFe", t.QNFe)
	g.opt("qMDFe", t.QMDFe)
	g.req("vCarga", t.VCarga)
	g.req("cUnid", t.CUnid)
	g.req("qCarga", t.QCarga)
	return g
}

func buildTechResponsible(t *mdfe.TechResponsible) *group {
	g := newGroup("infRespTec")
	g.req("CNPJ", t.CNPJ)
	g.req("xContato", t.XContato)
	g.req("email", t.Email)
	g.req("fone", t.Fone)
	return g
}

// =============================================================================
// ROAD MODAL
// =============================================================================

func buildRoad(r *mdfe.RoadModal) *group {
	g := newGroup("rodo")

	if r.HasANTT() {
		antt := newGroup("infANTT")
		antt.opt("RNTRC", r.RNTRC)
		for _, c := range r.InfCIOT {
			ciot := newGroup("infCIOT")
			ciot.req("CIOT", c.CIOT)
			ciot.opt("CPF", c.CPF)
			ciot.opt("CNPJ", c.CNPJ)
			antt.add(ciot)
		}

		// valePed is emitted only when at least one disp exists.
		if len(r.ValePed) > 0 {
			vale := newGroup("valePed")
			for _, d := range r.ValePed {
				disp := newGroup("disp")
				disp.req("CNPJForn", d.CNPJForn)
				disp.opt("CNPJPg", d.CNPJPg)
				disp.opt("CPFPg", d.CPFPg)
				disp.req("nCompra", d.NCompra)
				disp.req("vValePed", d.VValePed)
				vale.add(disp)
			}
			antt.add(vale)
		}

		for _, c := range r.InfContratante {
			contr := newGroup("infContratante")
			contr.opt("CPF", c.CPF)
			contr.opt("CNPJ", c.CNPJ)
			antt.add(contr)
		}
		g.addIfAny(antt)
	}

	if v := r.VeicTracao; v != nil {
		g.add(buildVehicle("veicTracao", *v))
	}
	for _, v := range r.VeicReboque {
		g.add(buildVehicle("veicReboque", v))
	}

	g.opt("codAgPorto", r.CodAgPorto)
	for _, n := range r.LacRodo {
		lac := newGroup("lacRodo")
		lac.req("nLacre", n)
		g.add(lac)
	}
	return g
}

// RoadXML renders the rodo fragment alone, compact and without declaration.
func RoadXML(r *mdfe.RoadModal) (string, error) {
	el, err := buildRoad(r).result()
	if err != nil {
		return "", err
	}
	var buffer bytes.Buffer
	writeElement(&buffer, el, "", 0)
	return buffer.String(), nil
}

// buildVehicle writes veicTracao and veicReboque, which share their layout
// except that only the traction vehicle has drivers and tpRod.
func buildVehicle(name string, v mdfe.Vehicle) *group {
	traction := name == "veicTracao"

	g := newGroup(name)
	g.opt("cInt", v.CInt)
	g.req("placa", v.Placa)
	g.opt("RENAVAM", v.RENAVAM)
	g.req("tara", v.Tara)
	g.opt("capKG", v.CapKG)
	g.opt("capM3", v.CapM3)

	for _, o := range v.Prop {
		prop := newGroup("prop")
		prop.opt("CPF", o.CPF)
		prop.opt("CNPJ", o.CNPJ)
		prop.req("RNTRC", o.RNTRC)
		prop.req("xNome", o.XNome)
		prop.opt("IE", o.IE)
		prop.opt("UF", o.UF)
		prop.req("tpProp", o.TpProp)
		g.add(prop)
	}

	if traction {
		for _, d := range v.Condutor {
			cond := newGroup("condutor")
			cond.req("xNome", d.XNome)
			cond.req("CPF", d.CPF)
			g.add(cond)
		}
		g.opt("tpRod", v.TpRod)
	}

	g.opt("tpCar", v.TpCar)
	g.opt("UF", v.UF)
	return g
}

// =============================================================================
// HELPER FUNCTIONS
// =============================================================================

// createSimpleElement creates a simple XML element with a text value.
func createSimpleElement(name, value string) XMLElement {
	return XMLElement{
		XMLName: xml.Name{Local: name},
		Value:   value,
	}
}

func attr(name, value string) xml.Attr {
	return xml.Attr{Name: xml.Name{Local: name}, Value: value}
}

// writeElement writes an XML element to the buffer. An empty indent writes
// everything on one line.
func writeElement(buffer *bytes.Buffer, element XMLElement, indent string, level int) {
	pretty := indent != ""
	if pretty {
		for i := 0; i < level; i++ {
			buffer.WriteString(indent)
		}
	}

	buffer.WriteString("<")
	buffer.WriteString(element.XMLName.Local)
	for _, a := range element.Attributes {
		buffer.WriteString(fmt.Sprintf(" %s=\"%s\"", a.Name.Local, escapeXML(a.Value, true)))
	}

	if len(element.Children) == 0 && element.Value == "" {
		buffer.WriteString("/>")
		if pretty {
			buffer.WriteString("\n")
		}
		return
	}

	buffer.WriteString(">")

	if element.Value != "" {
		buffer.WriteString(escapeXML(element.Value, false))
	} else {
		if pretty {
			buffer.WriteString("\n")
		}
		for _, child := range element.Children {
			writeElement(buffer, child, indent, level+1)
		}
		if pretty {
			for i := 0; i < level; i++ {
				buffer.WriteString(indent)
			}
		}
	}

	buffer.WriteString("</")
	buffer.WriteString(element.XMLName.Local)
	buffer.WriteString(">")
	if pretty {
		buffer.WriteString("\n")
	}
}

// escapeXML escapes special characters for XML. Quotes are only escaped
// inside attribute values.
func escapeXML(s string, attribute bool) string {
	var buffer bytes.Buffer

	for _, r := range s {
		switch r {
		case '&':
			buffer.WriteString("&amp;")
		case '<':
			buffer.WriteString("&lt;")
		case '>':
			buffer.WriteString("&gt;")
		case '"':
			if attribute {
				buffer.WriteString("&quot;")
			} else {
				buffer.WriteRune(r)
			}
		default:
			buffer.WriteRune(r)
		}
	}

	return buffer.String()
}
