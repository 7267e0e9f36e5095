// Package booking assembles the vehicle-service intake flow: collect
// the caller's identity, vehicle and appointment details, verify them
// against external systems, and create the booking after an explicit
// confirmation.
package booking

// Field paths collected by the intake flow.
const (
	FieldName    = "customer.name"
	FieldPhone   = "customer.phone"
	FieldCustID  = "customer.id"
	FieldMake    = "vehicle.make"
	FieldPlate   = "vehicle.plate"
	FieldService = "appointment.service"
	FieldDate    = "appointment.date"
	FieldSlot    = "appointment.slot"
	FieldBooking = "appointment.booking_id"
	FieldConfirm = "confirm.answer"
)

// Required is the field set completeness is measured over.
var Required = []string{
	FieldName,
	FieldPhone,
	FieldMake,
	FieldService,
	FieldDate,
}

// CourtesyDenylist holds greetings and courtesy words, English and
// Hinglish, that must never be stored as a person's name no matter how
// confident an extractor is about them.
var CourtesyDenylist = []string{
	"hello", "hi", "hey", "namaste", "namaskar",
	"thanks", "thank you", "shukriya", "dhanyavad",
	"ok", "okay", "yes", "no", "haan", "nahi",
	"please", "bhai", "sir", "madam", "ji",
	"good morning", "good evening", "bye",
}

// NameDenylist lists values never accepted as a person's name: the
// courtesy words plus vehicle brand tokens, which collide with name
// extraction ("Mahindra Scorpio" is not someone introducing
// themselves).
func NameDenylist() []string {
	out := append([]string(nil), CourtesyDenylist...)
	for variant := range VehicleMakes {
		out = append(out, variant)
	}
	return out
}

// VehicleMakes maps utterance variants to canonical manufacturer
// names.
var VehicleMakes = map[string]string{
	"maruti":        "Maruti Suzuki",
	"maruti suzuki": "Maruti Suzuki",
	"suzuki":        "Maruti Suzuki",
	"mahindra":      "Mahindra",
	"tata":          "Tata",
	"hyundai":       "Hyundai",
	"honda":         "Honda",
	"toyota":        "Toyota",
	"kia":           "Kia",
	"renault":       "Renault",
	"skoda":         "Skoda",
	"volkswagen":    "Volkswagen",
	"mg":            "MG",
}

// ServiceTypes maps utterance variants to the service catalogue.
var ServiceTypes = map[string]string{
	"general service": "general service",
	"service":         "general service",
	"servicing":       "general service",
	"oil change":      "oil change",
	"oil":             "oil change",
	"inspection":      "inspection",
	"checkup":         "inspection",
	"check up":        "inspection",
	"denting":         "denting and painting",
	"painting":        "denting and painting",
	"wash":            "washing",
	"washing":         "washing",
}

// serviceCatalogue returns the distinct canonical service names.
func serviceCatalogue() []string {
	seen := make(map[string]bool)
	var out []string
	for _, canon := range ServiceTypes {
		if !seen[canon] {
			seen[canon] = true
			out = append(out, canon)
		}
	}
	return out
}
