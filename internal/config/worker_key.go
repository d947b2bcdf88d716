package config

type WorkerKeyStruct struct {
	PersistResultsQueue string
	SendResultsQueue    string
	SendInvitesQueue    string
}

var WorkerKey = &WorkerKeyStruct{
	PersistResultsQueue: "persist_results_queue",
	SendResultsQueue:    "send_results_queue",
	SendInvitesQueue:    "send_invites_queue",
}
