package models

// Train is one scheduled run of a train on a departure date
type Train struct {
	TrainNo       string `json:"train_no" db:"train_no"`
	DepartureDate string `json:"departure_date" db:"departure_date"`
	TrainType     string `json:"train_type" db:"train_type"`
	Origin        string `json:"origin" db:"origin"`
	Destination   string `json:"destination" db:"destination"`
	DepartureTime string `json:"departure_time" db:"departure_time"`
	ArrivalTime   string `json:"arrival_time" db:"arrival_time"`
}

// TrainStop is one station in a train's ordered stop sequence
type TrainStop struct {
	TrainNo    string  `json:"train_no" db:"train_no"`
	Seq        int     `json:"seq" db:"seq"`
	Station    string  `json:"station" db:"station"`
	ArriveTime *string `json:"arrive_time,omitempty" db:"arrive_time"`
	DepartTime *string `json:"depart_time,omitempty" db:"depart_time"`
}
