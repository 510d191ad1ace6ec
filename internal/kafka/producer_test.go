package kafka

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"gw-transfer-batch/internal/models"
	"gw-transfer-batch/pkg/logger"

	"github.com/IBM/sarama"
	"github.com/IBM/sarama/mocks"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testEvent() models.RunCompletedEvent {
	return models.RunCompletedEvent{
		RunID:        "4b0c7b1e-1111-4c4c-9d9d-000000000001",
		Status:       models.RunStatusPartial,
		InputPath:    "archivos/transfers.csv",
		Committed:    200,
		Rejected:     3,
		ChunksFailed: 1,
		FinishedAt:   time.Date(2025, 7, 9, 23, 0, 5, 0, time.UTC),
	}
}

func TestKafkaProducer_SendRunCompleted(t *testing.T) {
	sp := mocks.NewSyncProducer(t, nil)
	event := testEvent()

	sp.ExpectSendMessageWithCheckerFunctionAndSucceed(func(val []byte) error {
		var got models.RunCompletedEvent
		if err := json.Unmarshal(val, &got); err != nil {
			return err
		}
		if got.RunID != event.RunID || got.Committed != 200 || got.Status != models.RunStatusPartial {
			return errors.New("unexpected event payload")
		}
		return nil
	})

	p := NewProducerWith(sp, "transfer-batch-runs", logger.Discard())
	require.NoError(t, p.SendRunCompleted(context.Background(), event))
	require.NoError(t, p.Close())
}

func TestKafkaProducer_SendRunCompleted_BrokerError(t *testing.T) {
	sp := mocks.NewSyncProducer(t, nil)
	sp.ExpectSendMessageAndFail(sarama.ErrNotLeaderForPartition)

	p := NewProducerWith(sp, "transfer-batch-runs", logger.Discard())
	err := p.SendRunCompleted(context.Background(), testEvent())

	assert.ErrorIs(t, err, sarama.ErrNotLeaderForPartition)
	require.NoError(t, p.Close())
}

func TestKafkaProducer_SendRunCompleted_ContextCancelled(t *testing.T) {
	block := make(chan struct{})
	p := NewProducerWith(&blockingProducer{release: block}, "transfer-batch-runs", logger.Discard())
	defer close(block)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := p.SendRunCompleted(ctx, testEvent())
	assert.ErrorIs(t, err, context.Canceled)
}

func TestNewSaramaConfig(t *testing.T) {
	cfg := NewSaramaConfig(3 * time.Second)

	assert.True(t, cfg.Producer.Return.Successes)
	assert.Equal(t, sarama.WaitForAll, cfg.Producer.RequiredAcks)
	assert.Equal(t, 3*time.Second, cfg.Producer.Timeout)
	require.NoError(t, cfg.Validate())
}

func TestNoOpProducer(t *testing.T) {
	p := NewNoOpProducer(logger.Discard())

	assert.NoError(t, p.SendRunCompleted(context.Background(), testEvent()))
	assert.NoError(t, p.Close())
}

type blockingProducer struct {
	sarama.SyncProducer
	release chan struct{}
}

func (b *blockingProducer) SendMessage(*sarama.ProducerMessage) (int32, int64, error) {
	<-b.release
	return 0, 0, nil
}
