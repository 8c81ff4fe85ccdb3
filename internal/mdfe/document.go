// =============================================================================
// MDF-e Converter - Document Model
// =============================================================================
//
// The in-memory tree of one transport manifest (MDF-e, model 58). Field
// names follow the XML tags they serialize to so the serializer reads as a
// straight walk over the schema.
//
// TREE SHAPE:
//   Document
//   ├── Ide (infMunCarrega*, infPercurso*)
//   ├── Emit (enderEmit)
//   ├── Discharges* (infMunDescarga)
//   │   └── infCTe* / infNFe* / infMDFeTransp*
//   │       ├── TransportUnits* (lacUnidTransp*, infUnidCarga* (lacUnidCarga*))
//   │       ├── Hazards*
//   │       └── PartialDelivery?
//   ├── Insurance* (seg)
//   ├── Road? (rodo)
//   ├── Totals (tot)
//   ├── Seals* (lacres), Downloaders* (autXML)
//   └── AdditionalInfo?, TechResponsible?
//
// =============================================================================

package mdfe

import "strings"

// Namespace is the portal namespace every MDF-e document and message uses.
const Namespace = "http://www.portalfiscal.inf.br/mdfe"

// DefaultModel is the fiscal model code of the MDF-e.
const DefaultModel = "58"

// IDPrefix precedes the 44-digit key in the infMDFe Id attribute.
const IDPrefix = "MDFe"

// Environment values of ide/tpAmb.
const (
	EnvProduction   = "1"
	EnvHomologation = "2"
)

// Fields is a decoded line: layout field name to raw value.
type Fields map[string]string

// Get returns the trimmed value of name, or "" when absent.
func (f Fields) Get(name string) string {
	return strings.TrimSpace(f[name])
}

// =============================================================================
// ROOT
// =============================================================================

// Document is the root of one manifest.
type Document struct {
	// Version is the infMDFe versao attribute (layout version, e.g. "3.00").
	Version string

	// ID is the infMDFe Id attribute: "MDFe" followed by the 44-digit key.
	ID string

	Ide             *Identification
	Emit            *Issuer
	Discharges      []Discharge
	Insurance       []Insurance
	Road            *RoadModal
	Totals          *Totals
	Seals           []string
	Downloaders     []Party
	AdditionalInfo  *AdditionalInfo
	TechResponsible *TechResponsible
}

// Key returns the 44-digit key embedded in ID.
func (d *Document) Key() string {
	return strings.TrimPrefix(d.ID, IDPrefix)
}

// Environment returns tpAmb, defaulting to homologation when unset.
func (d *Document) Environment() string {
	if d.Ide == nil || d.Ide.TpAmb == "" {
		return EnvHomologation
	}
	return d.Ide.TpAmb
}

// IsProduction reports whether the document targets the production environment.
func (d *Document) IsProduction() bool {
	return d.Environment() == EnvProduction
}

// =============================================================================
// IDENTIFICATION AND ISSUER
// =============================================================================

// Identification is the ide group.
type Identification struct {
	CUF           string
	TpAmb         string
	TpEmit        string
	TpTransp      string
	Mod           string
	Serie         string
	NMDF          string
	CMDF          string
	CDV           string
	Modal         string
	DhEmi         string
	TpEmis        string
	ProcEmi       string
	VerProc       string
	UFIni         string
	UFFim         string
	DhIniViagem   string
	IndCanalVerde string

	InfMunCarrega []LoadMunicipality
	InfPercurso   []string
}

// LoadMunicipality is one infMunCarrega entry.
type LoadMunicipality struct {
	CMunCarrega string
	XMunCarrega string
}

// Issuer is the emit group. Exactly one of CNPJ and CPF is expected.
type Issuer struct {
	CNPJ      string
	CPF       string
	IE        string
	XNome     string
	XFant     string
	EnderEmit *Address
}

// TaxID returns CNPJ, falling back to CPF.
func (i *Issuer) TaxID() string {
	if i.CNPJ != "" {
		return i.CNPJ
	}
	return i.CPF
}

// Address is enderEmit.
type Address struct {
	XLgr    string
	Nro     string
	XCpl    string
	XBairro string
	CMun    string
	XMun    string
	CEP     string
	UF      string
	Fone    string
	Email   string
}

// =============================================================================
// DISCHARGE MUNICIPALITIES AND FISCAL REFERENCES
// =============================================================================

// Discharge is one infMunDescarga with its three independent reference lists.
type Discharge struct {
	CMunDescarga string
	XMunDescarga string

	InfCTe        []FiscalRef
	InfNFe        []FiscalRef
	InfMDFeTransp []FiscalRef
}

// RefKind tells the three fiscal reference families apart.
type RefKind int

const (
	RefCTe RefKind = iota
	RefNFe
	RefMDFe
)

// Element returns the XML element name of the reference.
func (k RefKind) Element() string {
	switch k {
	case RefCTe:
		return "infCTe"
	case RefNFe:
		return "infNFe"
	default:
		return "infMDFeTransp"
	}
}

// KeyElement returns the name of the element holding the referenced key.
func (k RefKind) KeyElement() string {
	switch k {
	case RefCTe:
		return "chCTe"
	case RefNFe:
		return "chNFe"
	default:
		return "chMDFe"
	}
}

func (k RefKind) String() string { return k.Element() }

// FiscalRef is one infCTe, infNFe or infMDFeTransp entry.
type FiscalRef struct {
	Kind RefKind

	// Key is chCTe, chNFe or chMDFe depending on Kind.
	Key          string
	SegCodBarra  string
	IndReentrega string

	TransportUnits []TransportUnit
	Hazards        []Hazard

	// PartialDelivery only exists on CT-e references.
	PartialDelivery *PartialDelivery
}

// TransportUnit is infUnidTransp.
type TransportUnit struct {
	TpUnidTransp  string
	IdUnidTransp  string
	QtdRat        string
	LacUnidTransp []string
	InfUnidCarga  []CargoUnit
}

// CargoUnit is infUnidCarga.
type CargoUnit struct {
	TpUnidCarga  string
	IdUnidCarga  string
	QtdRat       string
	LacUnidCarga []string
}

// Hazard is peri.
type Hazard struct {
	NONU      string
	XNomeAE   string
	XClaRisco string
	GrEmb     string
	QTotProd  string
	QVolTipo  string
}

// PartialDelivery is infEntregaParcial.
type PartialDelivery struct {
	QtdTotal   string
	QtdParcial string
}

// =============================================================================
// INSURANCE
// =============================================================================

// Insurance is one seg group.
type Insurance struct {
	InfResp *InsuranceResponsible
	InfSeg  *Insurer
	NApol   string
	NAver   string
}

// InsuranceResponsible is seg/infResp.
type InsuranceResponsible struct {
	RespSeg string
	CNPJ    string
	CPF     string
}

// Insurer is seg/infSeg.
type Insurer struct {
	XSeg string
	CNPJ string
}

// =============================================================================
// ROAD MODAL
// =============================================================================

// RoadModal is infModal/rodo.
type RoadModal struct {
	RNTRC      string
	CodAgPorto string

	InfCIOT        []CIOT
	ValePed        []TollPrepayment
	InfContratante []Party
	VeicTracao     *Vehicle
	VeicReboque    []Vehicle
	LacRodo        []string
}

// HasANTT reports whether infANTT has anything to carry.
func (r *RoadModal) HasANTT() bool {
	return r.RNTRC != "" || len(r.InfCIOT) > 0 || len(r.ValePed) > 0 || len(r.InfContratante) > 0
}

// Vehicle is veicTracao or veicReboque. Trailers never carry drivers.
type Vehicle struct {
	CInt     string
	Placa    string
	RENAVAM  string
	Tara     string
	CapKG    string
	CapM3    string
	TpRod    string
	TpCar    string
	UF       string
	Prop     []Owner
	Condutor []Driver
}

// Owner is a vehicle prop entry.
type Owner struct {
	CPF    string
	CNPJ   string
	RNTRC  string
	XNome  string
	IE     string
	UF     string
	TpProp string
}

// Driver is a veicTracao condutor entry.
type Driver struct {
	XNome string
	CPF   string
}

// CIOT is infANTT/infCIOT.
type CIOT struct {
	CIOT string
	CPF  string
	CNPJ string
}

// TollPrepayment is one valePed/disp entry.
type TollPrepayment struct {
	CNPJForn string
	CNPJPg   string
	CPFPg    string
	NCompra  string
	VValePed string
}

// Party is a CNPJ-or-CPF pair (autXML, infContratante).
type Party struct {
	CNPJ string
	CPF  string
}

// =============================================================================
// TOTALS AND TRAILING GROUPS
// =============================================================================

// Totals is tot.
type Totals struct {
	QCTe   string
	QNFe   string
	QMDFe  string
	VCarga string
	CUnid  string
	QCarga string
}

// AdditionalInfo is infAdic.
type AdditionalInfo struct {
	InfAdFisco string
	InfCpl     string
}

// TechResponsible is infRespTec.
type TechResponsible struct {
	CNPJ     string
	XContato string
	Email    string
	Fone     string
}
