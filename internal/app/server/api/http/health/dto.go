package health

// Input запрос проверки состояния сервиса
type Input struct{}

// Output ответ проверки состояния сервиса
type Output struct {
	Body Response
}

// Response состояние сервиса и хранилища
type Response struct {
	Status   string `json:"status" example:"OK" doc:"Health status of the service"`
	Database string `json:"database,omitempty" example:"OK" doc:"Database connectivity status"`
}
