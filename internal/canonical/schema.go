package canonical

// Kind is the value shape of a canonical field.
type Kind int

const (
	// KindText holds a trimmed string.
	KindText Kind = iota
	// KindNumber holds a float64.
	KindNumber
	// KindDate holds a Date.
	KindDate
	// KindList holds a []string.
	KindList
	// KindRecords holds a []Record built from indexed sub-keys.
	KindRecords
)

func (k Kind) String() string {
	switch k {
	case KindText:
		return "text"
	case KindNumber:
		return "number"
	case KindDate:
		return "date"
	case KindList:
		return "list"
	case KindRecords:
		return "records"
	default:
		return "unknown"
	}
}

// FieldSpec describes one field in a document type's field set.
// Records fields list their Subfields; Key names the subfield that a flat,
// unindexed raw value populates (e.g. "containers" -> containers[i].number).
type FieldSpec struct {
	Name      string      `json:"name"`
	Kind      Kind        `json:"-"`
	Required  bool        `json:"required"`
	Key       string      `json:"key,omitempty"`
	Subfields []FieldSpec `json:"subfields,omitempty"`
}

// Subfield returns the named subfield of a records field.
func (f FieldSpec) Subfield(name string) (FieldSpec, bool) {
	for _, s := range f.Subfields {
		if s.Name == name {
			return s, true
		}
	}
	return FieldSpec{}, false
}

// Schema is the fixed field set for one document type.
type Schema struct {
	Type   DocumentType `json:"document_type"`
	Fields []FieldSpec  `json:"fields"`
}

// Field returns the definition of name, if it belongs to the schema.
func (s Schema) Field(name string) (FieldSpec, bool) {
	for _, f := range s.Fields {
		if f.Name == name {
			return f, true
		}
	}
	return FieldSpec{}, false
}

// Required returns the names of required fields in schema order.
func (s Schema) Required() []string {
	var names []string
	for _, f := range s.Fields {
		if f.Required {
			names = append(names, f.Name)
		}
	}
	return names
}

func text(name string, required bool) FieldSpec {
	return FieldSpec{Name: name, Kind: KindText, Required: required}
}

func number(name string, required bool) FieldSpec {
	return FieldSpec{Name: name, Kind: KindNumber, Required: required}
}

func date(name string, required bool) FieldSpec {
	return FieldSpec{Name: name, Kind: KindDate, Required: required}
}

func list(name string, required bool) FieldSpec {
	return FieldSpec{Name: name, Kind: KindList, Required: required}
}

func records(name string, required bool, key string, subfields ...FieldSpec) FieldSpec {
	return FieldSpec{Name: name, Kind: KindRecords, Required: required, Key: key, Subfields: subfields}
}

var containerRecords = records("containers", true, "number",
	text("number", false),
	text("seal", false),
	text("type", false),
	number("gross_weight_kg", false),
)

var cargoRecords = records("cargo", true, "description",
	text("description", false),
	text("hs_code", false),
	number("packages", false),
	number("gross_weight_kg", false),
	number("net_weight_kg", false),
)

var schemas = map[DocumentType]Schema{
	BillOfLading: {Type: BillOfLading, Fields: []FieldSpec{
		text("bol_number", true),
		text("shipper", true),
		text("consignee", true),
		text("notify_party", false),
		text("vessel", false),
		text("voyage", false),
		text("port_of_loading", false),
		text("port_of_discharge", false),
		date("shipped_on_board_date", false),
		number("gross_weight_kg", false),
		containerRecords,
		cargoRecords,
	}},
	CommercialInvoice: {Type: CommercialInvoice, Fields: []FieldSpec{
		text("invoice_number", true),
		date("invoice_date", true),
		text("seller", true),
		text("buyer", true),
		text("currency", false),
		number("total_amount", false),
		text("incoterms", false),
		text("country_of_origin", false),
		list("hs_codes", false),
		number("quantity", false),
		number("gross_weight_kg", false),
		number("net_weight_kg", false),
	}},
	PackingList: {Type: PackingList, Fields: []FieldSpec{
		text("packing_list_number", false),
		date("date", false),
		text("shipper", false),
		text("consignee", false),
		number("packages", true),
		number("quantity", false),
		number("gross_weight_kg", true),
		number("net_weight_kg", false),
		list("container_numbers", false),
	}},
	CertificateOfOrigin: {Type: CertificateOfOrigin, Fields: []FieldSpec{
		text("certificate_number", true),
		date("issue_date", true),
		text("country_of_origin", true),
		text("exporter", false),
		text("consignee", false),
		text("issuing_body", false),
		list("hs_codes", false),
	}},
	VeterinaryHealthCertificate: {Type: VeterinaryHealthCertificate, Fields: []FieldSpec{
		text("certificate_number", false),
		date("issue_date", true),
		text("signer_name", true),
		text("authority", true),
		text("country_of_origin", false),
		text("species", false),
		list("container_numbers", false),
	}},
	EUTracesCertificate: {Type: EUTracesCertificate, Fields: []FieldSpec{
		text("traces_reference", true),
		date("issue_date", true),
		text("consignor", false),
		text("consignee", false),
		text("border_control_post", false),
		list("container_numbers", false),
	}},
	FumigationCertificate: {Type: FumigationCertificate, Fields: []FieldSpec{
		text("certificate_number", true),
		date("fumigation_date", true),
		date("issue_date", false),
		text("fumigant", false),
		number("dosage_g_m3", false),
		number("exposure_hours", false),
		list("container_numbers", false),
	}},
	PhytosanitaryCertificate: {Type: PhytosanitaryCertificate, Fields: []FieldSpec{
		text("certificate_number", true),
		date("issue_date", true),
		text("authority", true),
		text("botanical_name", false),
		text("country_of_origin", false),
		list("container_numbers", false),
	}},
	ExportDeclaration: {Type: ExportDeclaration, Fields: []FieldSpec{
		text("declaration_number", true),
		date("declaration_date", true),
		text("exporter", false),
		list("hs_codes", false),
		number("gross_weight_kg", false),
		list("container_numbers", false),
	}},
	Other: {Type: Other},
}

// SchemaFor returns the field set for t. Unknown types yield an empty schema.
func SchemaFor(t DocumentType) Schema {
	if s, ok := schemas[t]; ok {
		return s
	}
	return Schema{Type: t}
}
