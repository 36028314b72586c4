package models

import (
	"strings"
	"time"

	"github.com/pkl-testcase/wo_backend/utils"
)

const (
	ColumnIncident  = "incident"
	ColumnServiceNo = "service_no"
	ColumnAlamat    = "alamat"
)

// WorkOrderColumns lists the optional columns shared by work_orders and reports, in table order.
var WorkOrderColumns = []string{
	"ticket_id_gamas",
	"external_ticket_id",
	"customer_id",
	"customer_name",
	"service_id",
	"service_no",
	"summary",
	"description_assignment",
	"reported_date",
	"reported_by",
	"reported_priority",
	"source_ticket",
	"channel",
	"contact_phone",
	"contact_name",
	"contact_email",
	"status",
	"status_date",
	"booking_date",
	"resolve_date",
	"date_modified",
	"last_update_worklog",
	"closed_by",
	"closed_reopen_by",
	"guarantee_status",
	"ttr_customer",
	"ttr_agent",
	"ttr_mitra",
	"ttr_nasional",
	"ttr_pending",
	"ttr_region",
	"ttr_witel",
	"ttr_end_to_end",
	"owner_group",
	"owner",
	"witel",
	"workzone",
	"region",
	"subsidiary",
	"territory_near_end",
	"territory_far_end",
	"customer_segment",
	"customer_type",
	"customer_category",
	"service_type",
	"slg",
	"technology",
	"lapul",
	"gaul",
	"onu_rx",
	"pending_reason",
	"incident_domain",
	"symptom",
	"hierarchy_path",
	"solution",
	"description_actual_solution",
	"kode_produk",
	"perangkat",
	"technician",
	"device_name",
	"sn_ont",
	"tipe_ont",
	"manufacture_ont",
	"impacted_site",
	"cause",
	"resolution",
	"worklog_summary",
	"classification_flag",
	"realm",
	"related_to_gamas",
	"tsc_result",
	"scc_result",
	"note",
	"notes_eskalasi",
	"rk_information",
	"external_ticket_tier_3",
	"classification_path",
	"urgency",
	"alamat",
	"sektor",
	"korlap",
}

var dateColumns = map[string]bool{
	"reported_date": true,
	"status_date":   true,
	"booking_date":  true,
	"resolve_date":  true,
	"date_modified": true,
}

var allowedColumns = func() map[string]bool {
	m := make(map[string]bool, len(WorkOrderColumns)+1)
	m[ColumnIncident] = true
	for _, c := range WorkOrderColumns {
		m[c] = true
	}
	return m
}()

// IsAllowedColumn reports whether name is incident or one of WorkOrderColumns.
func IsAllowedColumn(name string) bool {
	return allowedColumns[name]
}

func IsDateColumn(name string) bool {
	return dateColumns[name]
}

// NormalizeServiceNo trims a normalized service_no the way ledger keys are
// trimmed. Blank becomes nil.
func NormalizeServiceNo(value any) any {
	s, ok := value.(string)
	if !ok {
		return value
	}
	if s = strings.TrimSpace(s); s == "" {
		return nil
	}
	return s
}

const DefaultOrderBy = "reported_date desc"

// ParseOrderBy validates "<column> [asc|desc]" against the allow-list.
func ParseOrderBy(orderBy string) (column string, desc bool, err error) {
	orderBy = strings.TrimSpace(orderBy)
	if orderBy == "" {
		orderBy = DefaultOrderBy
	}
	parts := strings.Fields(orderBy)
	if len(parts) > 2 {
		return "", false, utils.InvalidInputf("order_by %q: expected \"<column> [asc|desc]\"", orderBy)
	}
	column = strings.ToLower(parts[0])
	if !IsAllowedColumn(column) {
		return "", false, utils.InvalidInputf("order_by: unknown column %q", parts[0])
	}
	if len(parts) == 2 {
		switch strings.ToLower(parts[1]) {
		case "asc":
		case "desc":
			desc = true
		default:
			return "", false, utils.InvalidInputf("order_by: unknown direction %q", parts[1])
		}
	}
	return column, desc, nil
}

// FieldValue returns the text of one column for exports, "" when null or unknown.
func (wo *WorkOrder) FieldValue(column string) string {
	switch column {
	case ColumnIncident:
		return wo.Incident
	case "ticket_id_gamas":
		return utils.DereferencePtr(wo.TicketIdGamas)
	case "external_ticket_id":
		return utils.DereferencePtr(wo.ExternalTicketId)
	case "customer_id":
		return utils.DereferencePtr(wo.CustomerId)
	case "customer_name":
		return utils.DereferencePtr(wo.CustomerName)
	case "service_id":
		return utils.DereferencePtr(wo.ServiceId)
	case "service_no":
		return utils.DereferencePtr(wo.ServiceNo)
	case "summary":
		return utils.DereferencePtr(wo.Summary)
	case "description_assignment":
		return utils.DereferencePtr(wo.DescriptionAssignment)
	case "reported_date":
		return formatTime(wo.ReportedDate)
	case "reported_by":
		return utils.DereferencePtr(wo.ReportedBy)
	case "reported_priority":
		return utils.DereferencePtr(wo.ReportedPriority)
	case "source_ticket":
		return utils.DereferencePtr(wo.SourceTicket)
	case "channel":
		return utils.DereferencePtr(wo.Channel)
	case "contact_phone":
		return utils.DereferencePtr(wo.ContactPhone)
	case "contact_name":
		return utils.DereferencePtr(wo.ContactName)
	case "contact_email":
		return utils.DereferencePtr(wo.ContactEmail)
	case "status":
		return utils.DereferencePtr(wo.Status)
	case "status_date":
		return formatTime(wo.StatusDate)
	case "booking_date":
		return formatTime(wo.BookingDate)
	case "resolve_date":
		return formatTime(wo.ResolveDate)
	case "date_modified":
		return formatTime(wo.DateModified)
	case "last_update_worklog":
		return utils.DereferencePtr(wo.LastUpdateWorklog)
	case "closed_by":
		return utils.DereferencePtr(wo.ClosedBy)
	case "closed_reopen_by":
		return utils.DereferencePtr(wo.ClosedReopenBy)
	case "guarantee_status":
		return utils.DereferencePtr(wo.GuaranteeStatus)
	case "ttr_customer":
		return utils.DereferencePtr(wo.TtrCustomer)
	case "ttr_agent":
		return utils.DereferencePtr(wo.TtrAgent)
	case "ttr_mitra":
		return utils.DereferencePtr(wo.TtrMitra)
	case "ttr_nasional":
		return utils.DereferencePtr(wo.TtrNasional)
	case "ttr_pending":
		return utils.DereferencePtr(wo.TtrPending)
	case "ttr_region":
		return utils.DereferencePtr(wo.TtrRegion)
	case "ttr_witel":
		return utils.DereferencePtr(wo.TtrWitel)
	case "ttr_end_to_end":
		return utils.DereferencePtr(wo.TtrEndToEnd)
	case "owner_group":
		return utils.DereferencePtr(wo.OwnerGroup)
	case "owner":
		return utils.DereferencePtr(wo.Owner)
	case "witel":
		return utils.DereferencePtr(wo.Witel)
	case "workzone":
		return utils.DereferencePtr(wo.Workzone)
	case "region":
		return utils.DereferencePtr(wo.Region)
	case "subsidiary":
		return utils.DereferencePtr(wo.Subsidiary)
	case "territory_near_end":
		return utils.DereferencePtr(wo.TerritoryNearEnd)
	case "territory_far_end":
		return utils.DereferencePtr(wo.TerritoryFarEnd)
	case "customer_segment":
		return utils.DereferencePtr(wo.CustomerSegment)
	case "customer_type":
		return utils.DereferencePtr(wo.CustomerType)
	case "customer_category":
		return utils.DereferencePtr(wo.CustomerCategory)
	case "service_type":
		return utils.DereferencePtr(wo.ServiceType)
	case "slg":
		return utils.DereferencePtr(wo.Slg)
	case "technology":
		return utils.DereferencePtr(wo.Technology)
	case "lapul":
		return utils.DereferencePtr(wo.Lapul)
	case "gaul":
		return utils.DereferencePtr(wo.Gaul)
	case "onu_rx":
		return utils.DereferencePtr(wo.OnuRx)
	case "pending_reason":
		return utils.DereferencePtr(wo.PendingReason)
	case "incident_domain":
		return utils.DereferencePtr(wo.IncidentDomain)
	case "symptom":
		return utils.DereferencePtr(wo.Symptom)
	case "hierarchy_path":
		return utils.DereferencePtr(wo.HierarchyPath)
	case "solution":
		return utils.DereferencePtr(wo.Solution)
	case "description_actual_solution":
		return utils.DereferencePtr(wo.DescriptionActualSolution)
	case "kode_produk":
		return utils.DereferencePtr(wo.KodeProduk)
	case "perangkat":
		return utils.DereferencePtr(wo.Perangkat)
	case "technician":
		return utils.DereferencePtr(wo.Technician)
	case "device_name":
		return utils.DereferencePtr(wo.DeviceName)
	case "sn_ont":
		return utils.DereferencePtr(wo.SnOnt)
	case "tipe_ont":
		return utils.DereferencePtr(wo.TipeOnt)
	case "manufacture_ont":
		return utils.DereferencePtr(wo.ManufactureOnt)
	case "impacted_site":
		return utils.DereferencePtr(wo.ImpactedSite)
	case "cause":
		return utils.DereferencePtr(wo.Cause)
	case "resolution":
		return utils.DereferencePtr(wo.Resolution)
	case "worklog_summary":
		return utils.DereferencePtr(wo.WorklogSummary)
	case "classification_flag":
		return utils.DereferencePtr(wo.ClassificationFlag)
	case "realm":
		return utils.DereferencePtr(wo.Realm)
	case "related_to_gamas":
		return utils.DereferencePtr(wo.RelatedToGamas)
	case "tsc_result":
		return utils.DereferencePtr(wo.TscResult)
	case "scc_result":
		return utils.DereferencePtr(wo.SccResult)
	case "note":
		return utils.DereferencePtr(wo.Note)
	case "notes_eskalasi":
		return utils.DereferencePtr(wo.NotesEskalasi)
	case "rk_information":
		return utils.DereferencePtr(wo.RkInformation)
	case "external_ticket_tier_3":
		return utils.DereferencePtr(wo.ExternalTicketTier3)
	case "classification_path":
		return utils.DereferencePtr(wo.ClassificationPath)
	case "urgency":
		return utils.DereferencePtr(wo.Urgency)
	case "alamat":
		return utils.DereferencePtr(wo.Alamat)
	case "sektor":
		return utils.DereferencePtr(wo.Sektor)
	case "korlap":
		return utils.DereferencePtr(wo.Korlap)
	}
	return ""
}

func formatTime(t *time.Time) string {
	if t == nil {
		return ""
	}
	return t.UTC().Format(utils.CanonicalDateTimeLayout)
}
