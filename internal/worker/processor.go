package worker

import (
	"context"
	"errors"
	"log"

	"github.com/mika2333/daily_english_server/internal/pkg/queue"
	"github.com/mika2333/daily_english_server/internal/service"
)

// Processor 配信任务处理器
// 每个任务对应一位用户某逻辑日的一封邮件；失败不重试，
// 当日的 reserved 占位记录留作排障线索，次日由清理任务回收
type Processor struct {
	deliveryService *service.DeliveryService
}

func NewProcessor(deliveryService *service.DeliveryService) *Processor {
	return &Processor{deliveryService: deliveryService}
}

// Process 执行一次配信任务
func (p *Processor) Process(ctx context.Context, job *queue.DeliveryJob) error {
	record, err := p.deliveryService.Deliver(ctx, job.UserID, job.DateKey, job.IsTrial)
	if err != nil {
		// 同日重复任务（调度重叠、手工触发）是正常情况，不算失败
		if errors.Is(err, service.ErrAlreadyDelivered) {
			log.Printf("Worker: user %d already delivered on %s, skipping", job.UserID, job.DateKey)
			return nil
		}
		return err
	}

	log.Printf("Worker: delivered %s to user %d (topic %s, message %s)",
		job.DateKey, job.UserID, record.Topic, record.MessageID)
	return nil
}
