package domain

// MedicationInfo is a reference entry for a commonly prescribed medication.
type MedicationInfo struct {
	Name        string
	TypicalDose string
	Description string
}

// Catalog lists the medications offered for quick selection when adding a
// treatment. Free-form names are accepted too; the catalog is advisory.
var Catalog = []MedicationInfo{
	{Name: "Paracetamol", TypicalDose: "500mg", Description: "Analgesic and antipyretic"},
	{Name: "Ibuprofen", TypicalDose: "400mg", Description: "Non-steroidal anti-inflammatory"},
	{Name: "Aspirin", TypicalDose: "100mg", Description: "Analgesic and antiplatelet"},
	{Name: "Omeprazole", TypicalDose: "20mg", Description: "Proton-pump inhibitor"},
	{Name: "Loratadine", TypicalDose: "10mg", Description: "Antihistamine for allergies"},
	{Name: "Amoxicillin", TypicalDose: "500mg", Description: "Broad-spectrum antibiotic"},
	{Name: "Metformin", TypicalDose: "500mg", Description: "Oral antidiabetic"},
	{Name: "Losartan", TypicalDose: "50mg", Description: "Antihypertensive"},
	{Name: "Atorvastatin", TypicalDose: "20mg", Description: "Lipid-lowering agent"},
	{Name: "Levothyroxine", TypicalDose: "50mcg", Description: "Thyroid hormone"},
	{Name: "Clonazepam", TypicalDose: "0.5mg", Description: "Anxiolytic and anticonvulsant"},
	{Name: "Sertraline", TypicalDose: "50mg", Description: "Antidepressant"},
	{Name: "Diclofenac", TypicalDose: "50mg", Description: "Anti-inflammatory and analgesic"},
	{Name: "Ranitidine", TypicalDose: "150mg", Description: "H2 antagonist"},
	{Name: "Prednisone", TypicalDose: "5mg", Description: "Anti-inflammatory corticosteroid"},
}

// CatalogLookup returns the catalog entry for name, or nil if unknown.
func CatalogLookup(name string) *MedicationInfo {
	for i := range Catalog {
		if Catalog[i].Name == name {
			return &Catalog[i]
		}
	}
	return nil
}
