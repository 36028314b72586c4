package models

const TableServiceAddresses = "data_layanan"

// ServiceAddress is one address ledger entry. Last write wins per service_no.
type ServiceAddress struct {
	ServiceNo string  `gorm:"column:service_no;primaryKey;size:255" json:"service_no" binding:"required"`
	Alamat    *string `gorm:"column:alamat;type:text" json:"alamat"`
}

func (ServiceAddress) TableName() string { return TableServiceAddresses }
