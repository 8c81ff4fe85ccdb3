package mdfe

import "sort"

// handler attaches one decoded line to the document in progress.
type handler func(b *Builder, f Fields) error

// refFamily is one of the three structurally identical fiscal reference
// label families. Its nested labels are the family letter plus 01..05, and
// the closing label is the letter plus 99.
type refFamily struct {
	label string
	kind  RefKind
}

var refFamilies = []refFamily{
	{label: "F", kind: RefCTe},
	{label: "H", kind: RefNFe},
	{label: "J", kind: RefMDFe},
}

// handlers is the closed label table. Keys are upper case.
var handlers = newHandlerTable()

func newHandlerTable() map[string]handler {
	t := map[string]handler{
		"A":    (*Builder).openDocument,
		"B":    (*Builder).identification,
		"B01":  (*Builder).loadMunicipality,
		"B02":  (*Builder).routeState,
		"C":    (*Builder).openIssuer,
		"C02":  (*Builder).issuerCNPJ,
		"C02A": (*Builder).issuerCPF,
		"C05":  (*Builder).issuerAddress,
		"E":    (*Builder).discharge,

		"F06": (*Builder).partialDelivery,

		"K":   (*Builder).openInsurance,
		"K01": (*Builder).insuranceResponsible,
		"K02": (*Builder).insurer,
		"K03": (*Builder).closeInsurance,

		"O01": (*Builder).openRoad,
		"O02": (*Builder).tractionVehicle,
		"O03": (*Builder).tractionOwner,
		"O04": (*Builder).driver,
		"O05": (*Builder).trailerVehicle,
		"O06": (*Builder).trailerOwner,
		"O07": (*Builder).ciot,
		"O08": (*Builder).contractor,
		"P02": (*Builder).tollPrepayment,
		"P03": (*Builder).roadSeal,
		"P99": (*Builder).closeRoad,

		"W02": (*Builder).totals,
		"X02": (*Builder).seal,
		"Y02": (*Builder).downloader,
		"Z":   (*Builder).additionalInfo,
		"IRT": (*Builder).techResponsible,
	}

	for _, fam := range refFamilies {
		t[fam.label] = func(b *Builder, f Fields) error { return b.openReference(fam, f) }
		t[fam.label+"01"] = func(b *Builder, f Fields) error { return b.transportUnit(fam, f) }
		t[fam.label+"02"] = func(b *Builder, f Fields) error { return b.transportSeal(fam, f) }
		t[fam.label+"03"] = func(b *Builder, f Fields) error { return b.cargoUnit(fam, f) }
		t[fam.label+"04"] = func(b *Builder, f Fields) error { return b.cargoSeal(fam, f) }
		t[fam.label+"05"] = func(b *Builder, f Fields) error { return b.hazard(fam, f) }
		t[fam.label+"99"] = func(b *Builder, f Fields) error { return b.closeReference(fam) }
	}

	return t
}

// Labels returns every label the builder routes, sorted.
func Labels() []string {
	labels := make([]string, 0, len(handlers))
	for l := range handlers {
		labels = append(labels, l)
	}
	sort.Strings(labels)
	return labels
}

// HasLabel reports whether label (upper case) has a handler.
func HasLabel(label string) bool {
	_, ok := handlers[label]
	return ok
}

// =============================================================================
// DOCUMENT, IDENTIFICATION, ISSUER
// =============================================================================

func (b *Builder) openDocument(f Fields) error {
	if b.opened {
		return violation("A", "infMDFe already opened")
	}
	b.opened = true
	b.doc.Version = f.Get("versao")
	b.doc.ID = f.Get("Id")
	return nil
}

func (b *Builder) identification(f Fields) error {
	if b.acc.ide != nil || b.doc.Ide != nil {
		return violation("B", "ide already given")
	}
	if b.acc.issuer != nil {
		return violation("B", "ide must precede emit")
	}

	ide := &Identification{
		CUF:           f.Get("cUF"),
		TpAmb:         f.Get("tpAmb"),
		TpEmit:        f.Get("tpEmit"),
		Mod:           f.Get("mod"),
		Serie:         f.Get("serie"),
		NMDF:          f.Get("nMDF"),
		CMDF:          f.Get("cMDF"),
		Modal:         f.Get("modal"),
		DhEmi:         f.Get("dhEmi"),
		TpEmis:        f.Get("tpEmis"),
		ProcEmi:       f.Get("procEmi"),
		VerProc:       f.Get("verProc"),
		UFIni:         f.Get("UFIni"),
		UFFim:         f.Get("UFFim"),
		TpTransp:      f.Get("tpTransp"),
		DhIniViagem:   f.Get("dhIniViagem"),
		IndCanalVerde: f.Get("indCanalVerde"),
	}
	if ide.Mod == "" {
		ide.Mod = DefaultModel
	}
	switch emitted, err := ParseDateTime(ide.DhEmi, b.opts.Location); {
	case ide.DhEmi == "":
		ide.DhEmi = b.now()
	case err == nil:
		// dhEmi always carries its offset; a bare local time is read in Location.
		ide.DhEmi = emitted.Format(DateTimeLayout)
	}

	b.acc.ide = ide
	return nil
}

func (b *Builder) pendingIde(label string) (*Identification, error) {
	if b.acc.ide == nil {
		if b.doc.Ide != nil {
			return nil, violation(label, "ide already closed by emit")
		}
		return nil, violation(label, "no ide (B) open")
	}
	return b.acc.ide, nil
}

func (b *Builder) loadMunicipality(f Fields) error {
	ide, err := b.pendingIde("B01")
	if err != nil {
		return err
	}
	ide.InfMunCarrega = append(ide.InfMunCarrega, LoadMunicipality{
		CMunCarrega: f.Get("cMunCarrega"),
		XMunCarrega: f.Get("xMunCarrega"),
	})
	return nil
}

func (b *Builder) routeState(f Fields) error {
	ide, err := b.pendingIde("B02")
	if err != nil {
		return err
	}
	ide.InfPercurso = append(ide.InfPercurso, f.Get("UFPer"))
	return nil
}

// openIssuer is the only implicit flush across families: ide has no closing
// label, so the start of emit closes it.
func (b *Builder) openIssuer(f Fields) error {
	if b.acc.issuer != nil {
		return violation("C", "emit already given")
	}
	if b.acc.ide != nil {
		b.doc.Ide = b.acc.ide
		b.acc.ide = nil
	}

	b.acc.issuer = &Issuer{
		XNome: f.Get("xNome"),
		XFant: f.Get("xFant"),
		IE:    f.Get("IE"),
	}
	b.doc.Emit = b.acc.issuer
	return nil
}

func (b *Builder) openIssuerFor(label string) (*Issuer, error) {
	if b.acc.issuer == nil {
		return nil, violation(label, "no emit (C) open")
	}
	return b.acc.issuer, nil
}

func (b *Builder) issuerCNPJ(f Fields) error {
	issuer, err := b.openIssuerFor("C02")
	if err != nil {
		return err
	}
	if issuer.CNPJ != "" || issuer.CPF != "" {
		return violation("C02", "emit identity already given")
	}
	issuer.CNPJ = f.Get("CNPJ")
	return nil
}

func (b *Builder) issuerCPF(f Fields) error {
	issuer, err := b.openIssuerFor("C02A")
	if err != nil {
		return err
	}
	if issuer.CNPJ != "" || issuer.CPF != "" {
		return violation("C02A", "emit identity already given")
	}
	issuer.CPF = f.Get("CPF")
	return nil
}

func (b *Builder) issuerAddress(f Fields) error {
	issuer, err := b.openIssuerFor("C05")
	if err != nil {
		return err
	}
	if issuer.EnderEmit != nil {
		return violation("C05", "enderEmit already given")
	}
	issuer.EnderEmit = &Address{
		XLgr:    f.Get("xLgr"),
		Nro:     f.Get("nro"),
		XCpl:    f.Get("xCpl"),
		XBairro: f.Get("xBairro"),
		CMun:    f.Get("cMun"),
		XMun:    f.Get("xMun"),
		CEP:     f.Get("CEP"),
		UF:      f.Get("UF"),
		Fone:    f.Get("fone"),
		Email:   f.Get("email"),
	}
	return nil
}

// =============================================================================
// DISCHARGE MUNICIPALITIES AND FISCAL REFERENCES
// =============================================================================

func (b *Builder) discharge(f Fields) error {
	b.doc.Discharges = append(b.doc.Discharges, Discharge{
		CMunDescarga: f.Get("cMunDescarga"),
		XMunDescarga: f.Get("xMunDescarga"),
	})
	b.acc.discharge = len(b.doc.Discharges) - 1
	return nil
}

func (b *Builder) openReference(fam refFamily, f Fields) error {
	if b.acc.discharge < 0 {
		return violation(fam.label, "no infMunDescarga (E) open")
	}
	if b.acc.ref != nil {
		return violation(fam.label, "%s opened by %s is still open", b.acc.ref.Kind, b.acc.refLabel)
	}

	b.acc.ref = &FiscalRef{
		Kind:         fam.kind,
		Key:          f.Get(fam.kind.KeyElement()),
		SegCodBarra:  f.Get("SegCodBarra"),
		IndReentrega: f.Get("indReentrega"),
	}
	b.acc.refLabel = fam.label
	b.acc.refAt = b.acc.discharge
	b.acc.unit = -1
	b.acc.cargo = -1
	return nil
}

func (b *Builder) openRef(fam refFamily, label string) (*FiscalRef, error) {
	if b.acc.ref == nil || b.acc.ref.Kind != fam.kind {
		return nil, violation(label, "no %s (%s) open", fam.kind, fam.label)
	}
	return b.acc.ref, nil
}

func (b *Builder) transportUnit(fam refFamily, f Fields) error {
	ref, err := b.openRef(fam, fam.label+"01")
	if err != nil {
		return err
	}
	ref.TransportUnits = append(ref.TransportUnits, TransportUnit{
		TpUnidTransp: f.Get("tpUnidTransp"),
		IdUnidTransp: f.Get("idUnidTransp"),
		QtdRat:       f.Get("qtdRat"),
	})
	b.acc.unit = len(ref.TransportUnits) - 1
	b.acc.cargo = -1
	return nil
}

func (b *Builder) currentUnit(fam refFamily, label string) (*TransportUnit, error) {
	ref, err := b.openRef(fam, label)
	if err != nil {
		return nil, err
	}
	if b.acc.unit < 0 {
		return nil, violation(label, "no infUnidTransp (%s01) open", fam.label)
	}
	return &ref.TransportUnits[b.acc.unit], nil
}

func (b *Builder) transportSeal(fam refFamily, f Fields) error {
	unit, err := b.currentUnit(fam, fam.label+"02")
	if err != nil {
		return err
	}
	unit.LacUnidTransp = append(unit.LacUnidTransp, f.Get("nLacre"))
	return nil
}

func (b *Builder) cargoUnit(fam refFamily, f Fields) error {
	unit, err := b.currentUnit(fam, fam.label+"03")
	if err != nil {
		return err
	}
	unit.InfUnidCarga = append(unit.InfUnidCarga, CargoUnit{
		TpUnidCarga: f.Get("tpUnidCarga"),
		IdUnidCarga: f.Get("idUnidCarga"),
		QtdRat:      f.Get("qtdRat"),
	})
	b.acc.cargo = len(unit.InfUnidCarga) - 1
	return nil
}

func (b *Builder) cargoSeal(fam refFamily, f Fields) error {
	label := fam.label + "04"
	unit, err := b.currentUnit(fam, label)
	if err != nil {
		return err
	}
	if b.acc.cargo < 0 {
		return violation(label, "no infUnidCarga (%s03) open", fam.label)
	}
	cargo := &unit.InfUnidCarga[b.acc.cargo]
	cargo.LacUnidCarga = append(cargo.LacUnidCarga, f.Get("nLacre"))
	return nil
}

func (b *Builder) hazard(fam refFamily, f Fields) error {
	ref, err := b.openRef(fam, fam.label+"05")
	if err != nil {
		return err
	}
	ref.Hazards = append(ref.Hazards, Hazard{
		NONU:      f.Get("nONU"),
		XNomeAE:   f.Get("xNomeAE"),
		XClaRisco: f.Get("xClaRisco"),
		GrEmb:     f.Get("grEmb"),
		QTotProd:  f.Get("qTotProd"),
		QVolTipo:  f.Get("qVolTipo"),
	})
	return nil
}

func (b *Builder) partialDelivery(f Fields) error {
	ref, err := b.openRef(refFamilies[0], "F06")
	if err != nil {
		return err
	}
	if ref.PartialDelivery != nil {
		return violation("F06", "infEntregaParcial already given")
	}
	ref.PartialDelivery = &PartialDelivery{
		QtdTotal:   f.Get("qtdTotal"),
		QtdParcial: f.Get("qtdParcial"),
	}
	return nil
}

// closeReference flushes the open reference into the discharge it was opened
// under, then clears every nested context.
func (b *Builder) closeReference(fam refFamily) error {
	ref, err := b.openRef(fam, fam.label+"99")
	if err != nil {
		return err
	}

	d := &b.doc.Discharges[b.acc.refAt]
	switch ref.Kind {
	case RefCTe:
		d.InfCTe = append(d.InfCTe, *ref)
	case RefNFe:
		d.InfNFe = append(d.InfNFe, *ref)
	case RefMDFe:
		d.InfMDFeTransp = append(d.InfMDFeTransp, *ref)
	}

	b.acc.ref = nil
	b.acc.refLabel = ""
	b.acc.unit = -1
	b.acc.cargo = -1
	return nil
}

// =============================================================================
// INSURANCE
// =============================================================================

func (b *Builder) openInsurance(f Fields) error {
	if b.acc.insurance != nil {
		return violation("K", "seg opened by K is still open")
	}
	b.acc.insurance = &Insurance{
		NApol: f.Get("nApol"),
		NAver: f.Get("nAver"),
	}
	return nil
}

func (b *Builder) openInsuranceFor(label string) (*Insurance, error) {
	if b.acc.insurance == nil {
		return nil, violation(label, "no seg (K) open")
	}
	return b.acc.insurance, nil
}

func (b *Builder) insuranceResponsible(f Fields) error {
	seg, err := b.openInsuranceFor("K01")
	if err != nil {
		return err
	}
	seg.InfResp = &InsuranceResponsible{
		RespSeg: f.Get("respSeg"),
		CNPJ:    f.Get("CNPJ"),
		CPF:     f.Get("CPF"),
	}
	return nil
}

func (b *Builder) insurer(f Fields) error {
	seg, err := b.openInsuranceFor("K02")
	if err != nil {
		return err
	}
	seg.InfSeg = &Insurer{
		XSeg: f.Get("xSeg"),
		CNPJ: f.Get("CNPJ"),
	}
	return nil
}

func (b *Builder) closeInsurance(Fields) error {
	seg, err := b.openInsuranceFor("K03")
	if err != nil {
		return err
	}
	b.doc.Insurance = append(b.doc.Insurance, *seg)
	b.acc.insurance = nil
	return nil
}

// =============================================================================
// ROAD MODAL
// =============================================================================

func (b *Builder) openRoad(f Fields) error {
	if b.acc.road != nil || b.doc.Road != nil {
		return violation("O01", "rodo already given")
	}
	b.acc.road = &RoadModal{
		RNTRC:      f.Get("RNTRC"),
		CodAgPorto: f.Get("codAgPorto"),
	}
	return nil
}

func (b *Builder) openRoadFor(label string) (*RoadModal, error) {
	if b.acc.road == nil {
		return nil, violation(label, "no rodo (O01) open")
	}
	return b.acc.road, nil
}

func vehicleFrom(f Fields) Vehicle {
	return Vehicle{
		CInt:    f.Get("cInt"),
		Placa:   f.Get("placa"),
		RENAVAM: f.Get("RENAVAM"),
		Tara:    f.Get("tara"),
		CapKG:   f.Get("capKG"),
		CapM3:   f.Get("capM3"),
		TpRod:   f.Get("tpRod"),
		TpCar:   f.Get("tpCar"),
		UF:      f.Get("UF"),
	}
}

func ownerFrom(f Fields) Owner {
	return Owner{
		CPF:    f.Get("CPF"),
		CNPJ:   f.Get("CNPJ"),
		RNTRC:  f.Get("RNTRC"),
		XNome:  f.Get("xNome"),
		IE:     f.Get("IE"),
		UF:     f.Get("UF"),
		TpProp: f.Get("tpProp"),
	}
}

func (b *Builder) tractionVehicle(f Fields) error {
	road, err := b.openRoadFor("O02")
	if err != nil {
		return err
	}
	if road.VeicTracao != nil {
		return violation("O02", "veicTracao already given")
	}
	v := vehicleFrom(f)
	road.VeicTracao = &v
	return nil
}

func (b *Builder) traction(label string) (*Vehicle, error) {
	road, err := b.openRoadFor(label)
	if err != nil {
		return nil, err
	}
	if road.VeicTracao == nil {
		return nil, violation(label, "no veicTracao (O02) open")
	}
	return road.VeicTracao, nil
}

func (b *Builder) tractionOwner(f Fields) error {
	v, err := b.traction("O03")
	if err != nil {
		return err
	}
	v.Prop = append(v.Prop, ownerFrom(f))
	return nil
}

func (b *Builder) driver(f Fields) error {
	v, err := b.traction("O04")
	if err != nil {
		return err
	}
	v.Condutor = append(v.Condutor, Driver{XNome: f.Get("xNome"), CPF: f.Get("CPF")})
	return nil
}

func (b *Builder) trailerVehicle(f Fields) error {
	road, err := b.openRoadFor("O05")
	if err != nil {
		return err
	}
	v := vehicleFrom(f)
	v.TpRod = ""
	road.VeicReboque = append(road.VeicReboque, v)
	return nil
}

func (b *Builder) trailerOwner(f Fields) error {
	road, err := b.openRoadFor("O06")
	if err != nil {
		return err
	}
	if len(road.VeicReboque) == 0 {
		return violation("O06", "no veicReboque (O05) open")
	}
	v := &road.VeicReboque[len(road.VeicReboque)-1]
	v.Prop = append(v.Prop, ownerFrom(f))
	return nil
}

func (b *Builder) ciot(f Fields) error {
	road, err := b.openRoadFor("O07")
	if err != nil {
		return err
	}
	road.InfCIOT = append(road.InfCIOT, CIOT{
		CIOT: f.Get("CIOT"),
		CPF:  f.Get("CPF"),
		CNPJ: f.Get("CNPJ"),
	})
	return nil
}

func (b *Builder) contractor(f Fields) error {
	road, err := b.openRoadFor("O08")
	if err != nil {
		return err
	}
	road.InfContratante = append(road.InfContratante, Party{CPF: f.Get("CPF"), CNPJ: f.Get("CNPJ")})
	return nil
}

func (b *Builder) tollPrepayment(f Fields) error {
	road, err := b.openRoadFor("P02")
	if err != nil {
		return err
	}
	road.ValePed = append(road.ValePed, TollPrepayment{
		CNPJForn: f.Get("CNPJForn"),
		CNPJPg:   f.Get("CNPJPg"),
		CPFPg:    f.Get("CPFPg"),
		NCompra:  f.Get("nCompra"),
		VValePed: f.Get("vValePed"),
	})
	return nil
}

func (b *Builder) roadSeal(f Fields) error {
	road, err := b.openRoadFor("P03")
	if err != nil {
		return err
	}
	road.LacRodo = append(road.LacRodo, f.Get("nLacre"))
	return nil
}

func (b *Builder) closeRoad(Fields) error {
	road, err := b.openRoadFor("P99")
	if err != nil {
		return err
	}
	b.doc.Road = road
	b.acc.road = nil
	return nil
}

// =============================================================================
// TOTALS AND TRAILING GROUPS
// =============================================================================

func (b *Builder) totals(f Fields) error {
	if b.doc.Totals != nil {
		return violation("W02", "tot already given")
	}
	b.doc.Totals = &Totals{
		QCTe:   f.Get("qCTe"),
		QNFe:   f.Get("qNFe"),
		QMDFe:  f.Get("qMDFe"),
		VCarga: f.Get("vCarga"),
		CUnid:  f.Get("cUnid"),
		QCarga: f.Get("qCarga"),
	}
	return nil
}

func (b *Builder) seal(f Fields) error {
	b.doc.Seals = append(b.doc.Seals, f.Get("nLacre"))
	return nil
}

func (b *Builder) downloader(f Fields) error {
	b.doc.Downloaders = append(b.doc.Downloaders, Party{CPF: f.Get("CPF"), CNPJ: f.Get("CNPJ")})
	return nil
}

func (b *Builder) additionalInfo(f Fields) error {
	if b.doc.AdditionalInfo != nil {
		return violation("Z", "infAdic already given")
	}
	b.doc.AdditionalInfo = &AdditionalInfo{
		InfAdFisco: f.Get("infAdFisco"),
		InfCpl:     f.Get("infCpl"),
	}
	return nil
}

func (b *Builder) techResponsible(f Fields) error {
	if b.doc.TechResponsible != nil {
		return violation("IRT", "infRespTec already given")
	}
	b.doc.TechResponsible = &TechResponsible{
		CNPJ:     f.Get("CNPJ"),
		XContato: f.Get("xContato"),
		Email:    f.Get("email"),
		Fone:     f.Get("fone"),
	}
	return nil
}
