package validation

import "github.com/ginjaninja78/mdfe-converter/internal/mdfe"

// field is one leaf of the document, named by its XML group and tag.
type field struct {
	group string
	field string
	value string
}

type fieldList []field

func (l *fieldList) add(group string, pairs ...string) {
	for i := 0; i+1 < len(pairs); i += 2 {
		*l = append(*l, field{group: group, field: pairs[i], value: pairs[i+1]})
	}
}

// fieldsOf flattens doc in tree order.
func fieldsOf(doc *mdfe.Document) []field {
	var out fieldList
	if doc == nil {
		return nil
	}

	if ide := doc.Ide; ide != nil {
		out.add("ide",
			"cUF", ide.CUF,
			"tpAmb", ide.TpAmb,
			"tpEmit", ide.TpEmit,
			"tpTransp", ide.TpTransp,
			"mod", ide.Mod,
			"serie", ide.Serie,
			"nMDF", ide.NMDF,
			"cMDF", ide.CMDF,
			"modal", ide.Modal,
			"dhEmi", ide.DhEmi,
			"tpEmis", ide.TpEmis,
			"procEmi", ide.ProcEmi,
			"verProc", ide.VerProc,
			"UFIni", ide.UFIni,
			"UFFim", ide.UFFim,
			"dhIniViagem", ide.DhIniViagem,
		)
		for _, m := range ide.InfMunCarrega {
			out.add("infMunCarrega", "cMunCarrega", m.CMunCarrega, "xMunCarrega", m.XMunCarrega)
		}
		for _, uf := range ide.InfPercurso {
			out.add("infPercurso", "UFPer", uf)
		}
	}

	if e := doc.Emit; e != nil {
		out.add("emit", "CNPJ", e.CNPJ, "CPF", e.CPF, "IE", e.IE, "xNome", e.XNome, "xFant", e.XFant)
		if a := e.EnderEmit; a != nil {
			out.add("enderEmit",
				"xLgr", a.XLgr, "nro", a.Nro, "xCpl", a.XCpl, "xBairro", a.XBairro,
				"cMun", a.CMun, "xMun", a.XMun, "CEP", a.CEP, "UF", a.UF,
				"fone", a.Fone, "email", a.Email,
			)
		}
	}

	for _, d := range doc.Discharges {
		out.add("infMunDescarga", "cMunDescarga", d.CMunDescarga, "xMunDescarga", d.XMunDescarga)
		for _, refs := range [][]mdfe.FiscalRef{d.InfCTe, d.InfNFe, d.InfMDFeTransp} {
			for _, r := range refs {
				out.reference(r)
			}
		}
	}

	for _, s := range doc.Insurance {
		if s.InfResp != nil {
			out.add("infResp", "respSeg", s.InfResp.RespSeg, "CNPJ", s.InfResp.CNPJ, "CPF", s.InfResp.CPF)
		}
		if s.InfSeg != nil {
			out.add("infSeg", "xSeg", s.InfSeg.XSeg, "CNPJ", s.InfSeg.CNPJ)
		}
		out.add("seg", "nApol", s.NApol, "nAver", s.NAver)
	}

	if r := doc.Road; r != nil {
		out.road(r)
	}

	if t := doc.Totals; t != nil {
		out.add("tot",
			"qCTe", t.QCTe, "qNFe", t.QNFe, "qMDFe", t.QMDFe,
			"vCarga", t.VCarga, "cUnid", t.CUnid, "qCarga", t.QCarga,
		)
	}

	for _, p := range doc.Downloaders {
		out.add("autXML", "CNPJ", p.CNPJ, "CPF", p.CPF)
	}

	if t := doc.TechResponsible; t != nil {
		out.add("infRespTec", "CNPJ", t.CNPJ, "xContato", t.XContato, "email", t.Email, "fone", t.Fone)
	}

	return out
}

func (l *fieldList) reference(r mdfe.FiscalRef) {
	group := r.Kind.Element()
	l.add(group, r.Kind.KeyElement(), r.Key, "SegCodBarra", r.SegCodBarra, "indReentrega", r.IndReentrega)

	for _, u := range r.TransportUnits {
		l.add("infUnidTransp", "tpUnidTransp", u.TpUnidTransp, "idUnidTransp", u.IdUnidTransp, "qtdRat", u.QtdRat)
		for _, c := range u.InfUnidCarga {
			l.add("infUnidCarga", "tpUnidCarga", c.TpUnidCarga, "idUnidCarga", c.IdUnidCarga, "qtdRat", c.QtdRat)
		}
	}
	for _, h := range r.Hazards {
		l.add("peri", "nONU", h.NONU, "qTotProd", h.QTotProd)
	}
}

func (l *fieldList) road(r *mdfe.RoadModal) {
	l.add("infANTT", "RNTRC", r.RNTRC)
	for _, c := range r.InfCIOT {
		l.add("infCIOT", "CIOT", c.CIOT, "CPF", c.CPF, "CNPJ", c.CNPJ)
	}
	for _, d := range r.ValePed {
		l.add("disp", "CNPJForn", d.CNPJForn, "CNPJPg", d.CNPJPg, "CPFPg", d.CPFPg, "vValePed", d.VValePed)
	}
	for _, c := range r.InfContratante {
		l.add("infContratante", "CPF", c.CPF, "CNPJ", c.CNPJ)
	}

	if r.VeicTracao != nil {
		l.vehicle("veicTracao", *r.VeicTracao)
	}
	for _, v := range r.VeicReboque {
		l.vehicle("veicReboque", v)
	}
}

func (l *fieldList) vehicle(group string, v mdfe.Vehicle) {
	l.add(group, "placa", v.Placa, "RENAVAM", v.RENAVAM, "tara", v.Tara, "capKG", v.CapKG, "UF", v.UF)
	for _, o := range v.Prop {
		l.add("prop", "CPF", o.CPF, "CNPJ", o.CNPJ, "RNTRC", o.RNTRC, "xNome", o.XNome, "UF", o.UF)
	}
	for _, d := range v.Condutor {
		l.add("condutor", "xNome", d.XNome, "CPF", d.CPF)
	}
}
