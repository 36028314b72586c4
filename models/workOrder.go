package models

import "time"

const (
	TableWorkOrders = "work_orders"
	TableReports    = "reports"
)

// WorkOrder is one active incident. Every column except incident is optional.
// The address (alamat) is a reconciled copy of the address ledger value.
type WorkOrder struct {
	Incident                  string     `gorm:"column:incident;primaryKey;size:100" json:"incident"`
	TicketIdGamas             *string    `gorm:"column:ticket_id_gamas;size:255" json:"ticket_id_gamas"`
	ExternalTicketId          *string    `gorm:"column:external_ticket_id;size:255" json:"external_ticket_id"`
	CustomerId                *string    `gorm:"column:customer_id;size:255" json:"customer_id"`
	CustomerName              *string    `gorm:"column:customer_name;size:255" json:"customer_name"`
	ServiceId                 *string    `gorm:"column:service_id;size:255" json:"service_id"`
	ServiceNo                 *string    `gorm:"column:service_no;size:255;index" json:"service_no"`
	Summary                   *string    `gorm:"column:summary;type:text" json:"summary"`
	DescriptionAssignment     *string    `gorm:"column:description_assignment;type:text" json:"description_assignment"`
	ReportedDate              *time.Time `gorm:"column:reported_date" json:"reported_date"`
	ReportedBy                *string    `gorm:"column:reported_by;size:255" json:"reported_by"`
	ReportedPriority          *string    `gorm:"column:reported_priority;size:255" json:"reported_priority"`
	SourceTicket              *string    `gorm:"column:source_ticket;size:255" json:"source_ticket"`
	Channel                   *string    `gorm:"column:channel;size:255" json:"channel"`
	ContactPhone              *string    `gorm:"column:contact_phone;size:255" json:"contact_phone"`
	ContactName               *string    `gorm:"column:contact_name;size:255" json:"contact_name"`
	ContactEmail              *string    `gorm:"column:contact_email;size:255" json:"contact_email"`
	Status                    *string    `gorm:"column:status;size:255;index" json:"status"`
	StatusDate                *time.Time `gorm:"column:status_date" json:"status_date"`
	BookingDate               *time.Time `gorm:"column:booking_date" json:"booking_date"`
	ResolveDate               *time.Time `gorm:"column:resolve_date" json:"resolve_date"`
	DateModified              *time.Time `gorm:"column:date_modified" json:"date_modified"`
	LastUpdateWorklog         *string    `gorm:"column:last_update_worklog;type:text" json:"last_update_worklog"`
	ClosedBy                  *string    `gorm:"column:closed_by;size:255" json:"closed_by"`
	ClosedReopenBy            *string    `gorm:"column:closed_reopen_by;size:255" json:"closed_reopen_by"`
	GuaranteeStatus           *string    `gorm:"column:guarantee_status;size:255" json:"guarantee_status"`
	TtrCustomer               *string    `gorm:"column:ttr_customer;size:255" json:"ttr_customer"`
	TtrAgent                  *string    `gorm:"column:ttr_agent;size:255" json:"ttr_agent"`
	TtrMitra                  *string    `gorm:"column:ttr_mitra;size:255" json:"ttr_mitra"`
	TtrNasional               *string    `gorm:"column:ttr_nasional;size:255" json:"ttr_nasional"`
	TtrPending                *string    `gorm:"column:ttr_pending;size:255" json:"ttr_pending"`
	TtrRegion                 *string    `gorm:"column:ttr_region;size:255" json:"ttr_region"`
	TtrWitel                  *string    `gorm:"column:ttr_witel;size:255" json:"ttr_witel"`
	TtrEndToEnd               *string    `gorm:"column:ttr_end_to_end;size:255" json:"ttr_end_to_end"`
	OwnerGroup                *string    `gorm:"column:owner_group;size:255" json:"owner_group"`
	Owner                     *string    `gorm:"column:owner;size:255" json:"owner"`
	Witel                     *string    `gorm:"column:witel;size:255" json:"witel"`
	Workzone                  *string    `gorm:"column:workzone;size:255;index" json:"workzone"`
	Region                    *string    `gorm:"column:region;size:255" json:"region"`
	Subsidiary                *string    `gorm:"column:subsidiary;size:255" json:"subsidiary"`
	TerritoryNearEnd          *string    `gorm:"column:territory_near_end;size:255" json:"territory_near_end"`
	TerritoryFarEnd           *string    `gorm:"column:territory_far_end;size:255" json:"territory_far_end"`
	CustomerSegment           *string    `gorm:"column:customer_segment;size:255" json:"customer_segment"`
	CustomerType              *string    `gorm:"column:customer_type;size:255" json:"customer_type"`
	CustomerCategory          *string    `gorm:"column:customer_category;size:255" json:"customer_category"`
	ServiceType               *string    `gorm:"column:service_type;size:255" json:"service_type"`
	Slg                       *string    `gorm:"column:slg;size:255" json:"slg"`
	Technology                *string    `gorm:"column:technology;size:255" json:"technology"`
	Lapul                     *string    `gorm:"column:lapul;size:255" json:"lapul"`
	Gaul                      *string    `gorm:"column:gaul;size:255" json:"gaul"`
	OnuRx                     *string    `gorm:"column:onu_rx;size:255" json:"onu_rx"`
	PendingReason             *string    `gorm:"column:pending_reason;size:255" json:"pending_reason"`
	IncidentDomain            *string    `gorm:"column:incident_domain;size:255" json:"incident_domain"`
	Symptom                   *string    `gorm:"column:symptom;size:255" json:"symptom"`
	HierarchyPath             *string    `gorm:"column:hierarchy_path;type:text" json:"hierarchy_path"`
	Solution                  *string    `gorm:"column:solution;type:text" json:"solution"`
	DescriptionActualSolution *string    `gorm:"column:description_actual_solution;type:text" json:"description_actual_solution"`
	KodeProduk                *string    `gorm:"column:kode_produk;size:255" json:"kode_produk"`
	Perangkat                 *string    `gorm:"column:perangkat;size:255" json:"perangkat"`
	Technician                *string    `gorm:"column:technician;size:255" json:"technician"`
	DeviceName                *string    `gorm:"column:device_name;size:255" json:"device_name"`
	SnOnt                     *string    `gorm:"column:sn_ont;size:255" json:"sn_ont"`
	TipeOnt                   *string    `gorm:"column:tipe_ont;size:255" json:"tipe_ont"`
	ManufactureOnt            *string    `gorm:"column:manufacture_ont;size:255" json:"manufacture_ont"`
	ImpactedSite              *string    `gorm:"column:impacted_site;type:text" json:"impacted_site"`
	Cause                     *string    `gorm:"column:cause;type:text" json:"cause"`
	Resolution                *string    `gorm:"column:resolution;type:text" json:"resolution"`
	WorklogSummary            *string    `gorm:"column:worklog_summary;type:text" json:"worklog_summary"`
	ClassificationFlag        *string    `gorm:"column:classification_flag;size:255" json:"classification_flag"`
	Realm                     *string    `gorm:"column:realm;size:255" json:"realm"`
	RelatedToGamas            *string    `gorm:"column:related_to_gamas;size:255" json:"related_to_gamas"`
	TscResult                 *string    `gorm:"column:tsc_result;size:255" json:"tsc_result"`
	SccResult                 *string    `gorm:"column:scc_result;size:255" json:"scc_result"`
	Note                      *string    `gorm:"column:note;type:text" json:"note"`
	NotesEskalasi             *string    `gorm:"column:notes_eskalasi;type:text" json:"notes_eskalasi"`
	RkInformation             *string    `gorm:"column:rk_information;type:text" json:"rk_information"`
	ExternalTicketTier3       *string    `gorm:"column:external_ticket_tier_3;size:255" json:"external_ticket_tier_3"`
	ClassificationPath        *string    `gorm:"column:classification_path;type:text" json:"classification_path"`
	Urgency                   *string    `gorm:"column:urgency;size:255" json:"urgency"`
	Alamat                    *string    `gorm:"column:alamat;type:text" json:"alamat"`
	Sektor                    *string    `gorm:"column:sektor;size:255;index" json:"sektor"`
	Korlap                    *string    `gorm:"column:korlap;size:255" json:"korlap"`
}

func (WorkOrder) TableName() string { return TableWorkOrders }

// Report is an archived (completed) work order. Same columns, separate table.
type Report WorkOrder

func (Report) TableName() string { return TableReports }
