// Package flows ships the dialog graphs compiled into the binary.
package flows

import (
	"fmt"

	"github.com/aretw0/dialogtree/pkg/domain"
	"github.com/aretw0/dialogtree/pkg/dsl"
	"github.com/aretw0/dialogtree/pkg/graph"
)

// Node ids and captured variables of the thermostat flow.
const (
	NodeStart          = "start"
	NodeAskCurrentTemp = "ask_current_temp"
	NodeAskDesiredTemp = "ask_desired_temp"
	NodeAskTime        = "ask_time"
	NodeAskDuration    = "ask_duration"
	NodeCheckDuration  = "check_duration"
	NodeOfferTicket    = "offer_ticket"
	NodeCreateTicket   = "create_ticket"
	NodeWaitAdvice     = "wait_advice"
	NodeEnd            = "end"

	VarCurrentTemp = domain.VarCurrentTemp
	VarDesiredTemp = domain.VarDesiredTemp
	VarTimeOfDay   = domain.VarTimeOfDay
	VarDuration    = "duration"
)

// DurationThresholdHours separates the escalation branch from the wait-and-retry branch.
const DurationThresholdHours = 1

// Thermostat builds the guided thermostat troubleshooting graph.
func Thermostat() *graph.Graph {
	b := dsl.New()

	b.Add(NodeStart).
		Say("Ты ассистент диагностики термостата. Начни диалог с пользователем, спроси, какая проблема. Пиши кратко и по делу.").
		Option("temp", "Скажи: 'Термостат не поддерживает нужную температуру'", NodeAskCurrentTemp).
		Option("other", "Скажи: 'Другая проблема'", NodeEnd)

	b.Add(NodeAskCurrentTemp).
		Say("Спроси кратко и четко - какая температура сейчас в комнате").
		Capture(VarCurrentTemp).
		Go(NodeAskDesiredTemp)

	b.Add(NodeAskDesiredTemp).
		Say("Спроси кратко и четко - какая температура должна быть в комнате").
		Capture(VarDesiredTemp).
		Go(NodeAskTime)

	b.Add(NodeAskTime).
		Say("Спроси кратко и четко - когда это произошло (утром, днем или вечером)?").
		Capture(VarTimeOfDay).
		Go(NodeAskDuration)

	b.Add(NodeAskDuration).
		Say("Спроси кратко и четко - как долго длится проблема в часах?").
		Capture(VarDuration).
		Go(NodeCheckDuration)

	b.Add(NodeCheckDuration).
		Branch(VarDuration, DurationThresholdHours, NodeOfferTicket, NodeWaitAdvice)

	b.Add(NodeOfferTicket).
		Say("Спроси кратко и четко - хочет ли пользователь создать заявку в техподдержку?").
		Option("yes", "Скажи: 'Да'", NodeCreateTicket).
		Option("no", "Скажи: 'Нет'", NodeEnd)

	b.Add(NodeCreateTicket).
		Compose(domain.ComposeTicket)

	b.Add(NodeWaitAdvice).
		Say("Скажи пользователю, что нужно подождать 1 час и обратиться снова, если проблема останется.").
		Option("ok", "Скажи: 'ОК'", NodeEnd)

	b.Add(NodeEnd).
		Say("Скажи, что диагностика завершена. Теперь вы можете задать свои вопросы.")

	return b.MustBuild()
}

var thermostatFacts = []string{
	"Термостаты обычно поддерживают температуру в диапазоне 5-30°C.",
	"Если термостат не поддерживает нужную температуру, проверьте батарейки и соединение с системой.",
	"Разница между текущей и желаемой температурой более 1°C может указывать на проблему. ",
	"Проблемы с термостатом чаще возникают при экстремальных температурах (очень холодно или жарко).",
	"Перезагрузка термостата может решить временные проблемы с температурой.",
	"Термостаты могут некорректно работать при низком заряде батареи.",
	"Если проблема длится более 1 часа, рекомендуется создать заявку в техподдержку.",
	"Утренние и вечерние часы - пиковое время для работы систем отопления/охлаждения.",
	"Термостаты могут медленнее реагировать при большой разнице температур внутри и снаружи.",
	"Проверьте, не закрыт ли термостат мебелью или шторами, это влияет на точность измерений.",
	"Современные термостаты часто имеют Wi-Fi подключение для удаленного управления.",
	"Калибровка термостата может потребоваться, если показания температуры кажутся неточными.",
	"Некоторые термостаты имеют функцию геозоны для автоматической регулировки температуры.",
	"Рекомендуется устанавливать термостат на внутренней стене, вдали от источников тепла и холода.",
}

// ThermostatKnowledge returns the knowledge base documents for the thermostat flow.
func ThermostatKnowledge() []domain.Document {
	docs := make([]domain.Document, 0, len(thermostatFacts))
	for i, text := range thermostatFacts {
		docs = append(docs, domain.Document{
			ID:       fmt.Sprintf("doc_%d", i),
			Text:     text,
			Metadata: map[string]string{"source": "manual", "type": "fact"},
		})
	}
	return docs
}
