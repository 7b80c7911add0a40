package main

// Msg is the HelloWorld sample.
type Msg struct {
	UserID  int64 `dds:"key"`
	Message string
}

func (Msg) TypeName() string  { return "HelloWorldData::Msg" }
func (Msg) TopicName() string { return "HelloWorldData_Msg" }

// Ping carries the send time of a round trip.
type Ping struct {
	Seq  uint64
	Sent int64 // unix nanoseconds
}

func (Ping) TypeName() string { return "ddsdemo::Ping" }
