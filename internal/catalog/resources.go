package catalog

const mb = int64(1 << 20)

func required(column string, kind Kind) Field {
	return Field{Column: column, Kind: kind, Required: true}
}

func optional(column string, kind Kind) Field {
	return Field{Column: column, Kind: kind}
}

func withDefault(column string, kind Kind, def any) Field {
	return Field{Column: column, Kind: kind, Default: def}
}

func stamp(column string) Field {
	return Field{Column: column, Kind: KindStamp}
}

// References marks the field as a foreign key checked before upload.
func (f Field) References(table, column string) Field {
	f.Parent = &Ref{Table: table, Column: column}
	return f
}

func asset(column, formField string, maxBytes int64) AssetField {
	return AssetField{Column: column, FormField: formField, MaxBytes: maxBytes, Required: true}
}

// Default returns the resource set served by the API.
func Default() *Catalog {
	c, err := New(Resources()...)
	if err != nil {
		panic(err)
	}
	return c
}

// Resources returns fresh definitions of every resource.
func Resources() []*Resource {
	return []*Resource{
		{
			Route: "areas", Table: "areas", Key: "id_area",
			Fields: []Field{required("nombre_area", KindText)},
			Assets: []AssetField{asset("img_area", "imagen", 5*mb)},
			Ops:    OpsAll,
		},
		{
			Route: "instituciones", Table: "instituciones", Key: "id_institucion",
			Fields: []Field{required("nombre_institucion", KindText)},
			Ops:    OpsAll,
		},
		{
			Route: "modulo", Table: "modulo", Key: "id_modulo",
			Fields: []Field{required("nombre_modulo", KindText)},
			Ops:    OpsAll,
		},
		{
			Route: "sorteos", Table: "sorteos", Key: "id_sorteos",
			Fields: []Field{{Column: "id_modulo", Kind: KindInt, Default: int64(3), Fixed: true}},
			Ops:    OpAdd | OpList | OpGet | OpDelete,
		},
		{
			Route: "sorteo_trivia", Table: "sorteo_trivia", Key: "id_sorteo_trivia",
			Fields: []Field{
				required("id_sorteos", KindInt).References("sorteos", "id_sorteos"),
				required("id_institucion", KindInt),
				required("cantidad_rectangulos", KindInt),
			},
			Assets: []AssetField{asset("url_img_fondo_trivia", "url_img_fondo_trivia", 5*mb)},
			Ops:    OpsAll,
		},
		{
			Route: "sorteo_desafio", Table: "sorteo_desafio", Key: "id_sorteo_desafio",
			Fields: []Field{
				required("id_sorteos", KindInt).References("sorteos", "id_sorteos"),
				required("id_institucion", KindInt),
				required("cantidad_rectangulos", KindInt),
			},
			Assets: []AssetField{asset("url_img_fondo_desafio", "url_img_fondo_desafio", 5*mb)},
			Ops:    OpsAll,
		},
		{
			Route: "trivia", Table: "trivia", Key: "id_trivia",
			Fields:    []Field{required("id_modulo", KindInt)},
			Filters:   map[string]string{"getByModulo": "id_modulo"},
			DeleteKey: "id_modulo",
			Ops:       OpsAll,
		},
		{
			Route: "configuracion_trivia", Table: "configuracion_trivia", Key: "id_configuracion",
			Fields: []Field{
				required("id_trivia", KindInt).References("trivia", "id_trivia"),
				required("nombre_configuracion", KindText),
			},
			Filters: map[string]string{"getByTrivia": "id_trivia"},
			Ops:     OpsAll,
		},
		{
			Route: "configuracion_general", Table: "configuracion_general", Key: "id_configuracion",
			Fields: []Field{required("nombre_configuracion", KindText)},
			Ops:    OpsAll,
		},
		{
			Route: "configuracion_desafio_mate", Table: "configuracion_desafio_mate", Key: "id_configuracion_desa",
			Fields: []Field{
				required("id_desafio", KindInt).References("desafio_matematico", "id_desafio"),
				required("nombre_configuracion", KindText),
			},
			Ops: OpsAll,
		},
		{
			Route: "desafio_matematico", Table: "desafio_matematico", Key: "id_desafio",
			Fields: []Field{
				required("id_modulo", KindInt).References("modulo", "id_modulo"),
				required("tiempo_ruleta", KindInterval),
			},
			Assets: []AssetField{
				asset("intro_video_url", "intro_video", 20*mb),
				asset("banner_url", "banner", 20*mb),
			},
			Ops: OpsAll,
		},
		{
			Route: "preguntas_publico", Table: "preguntas_publico", Key: "id_pregunta_publico",
			Fields: []Field{
				required("id_configuracion", KindInt).References("configuracion_trivia", "id_configuracion"),
			},
			Assets: []AssetField{asset("url_img_pregunta_publico", "url_img_pregunta_publico", 5*mb)},
			Ops:    OpsAll,
			Joins: []JoinView{{
				Route: "getWithAnswers", Table: "respuestas_publico", Key: "id_respuesta_publico",
				LinkColumn: "id_pregunta_publico",
				Own:        []string{"id_pregunta_publico", "url_img_pregunta_publico"},
				Columns:    []string{"id_respuesta_publico", "url_img_respuesta_publico"},
			}},
		},
		{
			Route: "respuestas_publico", Table: "respuestas_publico", Key: "id_respuesta_publico",
			Fields: []Field{
				required("id_configuracion", KindInt).References("configuracion_trivia", "id_configuracion"),
				required("id_pregunta_publico", KindInt).References("preguntas_publico", "id_pregunta_publico"),
			},
			Assets: []AssetField{asset("url_img_respuesta_publico", "url_img_respuesta_publico", 5*mb)},
			Ops:    OpsAll,
		},
		{
			Route: "videos_trivia", Table: "videos_trivia", Key: "id_video_trivia",
			Fields: []Field{
				required("id_configuracion", KindInt),
				required("nombre_video_trivia", KindText),
				stamp("fecha_subida"),
			},
			Assets: []AssetField{asset("url_video_trivia", "url_video_trivia", 50*mb)},
			Ops:    OpsAll,
		},
		{
			Route: "videos_trivia_comodin", Table: "videos_trivia_comodin", Key: "id_video_trivia_comodin",
			Fields: []Field{
				required("id_configuracion", KindInt),
				required("nombre_video_trivia_comodin", KindText),
				stamp("fecha_subida"),
			},
			Assets:  []AssetField{asset("url_video_trivia_comodin", "url_video_trivia_comodin", 50*mb)},
			Filters: map[string]string{"getByConfig": "id_configuracion"},
			Ops:     OpsAll,
		},
		{
			Route: "efectos_especiales", Table: "efectos_especiales", Key: "id_efectos_especiales",
			Fields: []Field{
				required("id_configuracion", KindInt),
				required("nombre", KindText),
			},
			Assets:  []AssetField{asset("url_efectos", "url_efectos", 10*mb)},
			Filters: map[string]string{"getByConfig": "id_configuracion"},
			Ops:     OpsAll,
		},
		{
			Route: "preguntas_area", Table: "preguntas_area", Key: "id_pregunta",
			Fields: []Field{required("id_area", KindInt).References("areas", "id_area")},
			Batch: &BatchSpec{
				Question: Role{
					Name: "pregunta", FormField: "preguntas", UpdateField: "pregunta", Prefix: "pregunta",
					Table: "preguntas_area", Column: "url_img_pregunta",
				},
				Followers: []Role{
					{
						Name: "respuesta", FormField: "respuestas", UpdateField: "respuesta", Prefix: "respuesta",
						Table: "respuestas_area", Column: "url_img_respuesta", LinkColumn: "id_pregunta",
					},
					{
						Name: "explicacion", FormField: "explicaciones", UpdateField: "explicacion", Prefix: "explicacion",
						Table: "explicaciones_area", Column: "url_img_explicacion", LinkColumn: "id_pregunta",
					},
				},
				ParentField: "id_area",
				Parent:      Ref{Table: "areas", Column: "id_area"},
				MaxBytes:    5 * mb,
			},
			Tree: true,
		},
		{
			Route: "respuestas_area", Table: "respuestas_area", Key: "id_respuesta",
			Fields: []Field{
				required("id_pregunta", KindInt).References("preguntas_area", "id_pregunta"),
			},
			Assets:  []AssetField{asset("url_img_respuesta", "url_img_respuesta", 5*mb)},
			Filters: map[string]string{"getByPregunta": "id_pregunta"},
			Ops:     OpsAll,
		},
		{
			Route: "explicaciones_area", Table: "explicaciones_area", Key: "id_explicacion",
			Fields: []Field{
				required("id_pregunta", KindInt).References("preguntas_area", "id_pregunta"),
			},
			Assets:  []AssetField{asset("url_img_explicacion", "url_img_explicacion", 5*mb)},
			Filters: map[string]string{"getByPregunta": "id_pregunta"},
			Ops:     OpsAll,
		},
		{
			Route: "ruletas", Table: "ruletas", Key: "id_ruletas",
			Fields: []Field{
				required("id_configuracion", KindInt).References("configuracion_trivia", "id_configuracion"),
				required("tipo_ruleta", KindText),
				required("tiempo", KindClock),
			},
			Ops: OpsAll,
		},
		{
			Route: "ruleta_comodin_detalle", Table: "ruleta_comodin_detalle", Key: "id_ruleta_comodin_detalle",
			Fields: []Field{
				required("id_ruletas", KindInt).References("ruletas", "id_ruletas"),
				required("texto_comodin", KindText),
			},
			Ops: OpsAll,
		},
		{
			Route: "ruleta_area_detalles", Table: "ruleta_areas_detalles", Key: "id_ruleta_areas_detalles",
			Fields: []Field{
				required("id_ruletas", KindInt).References("ruletas", "id_ruletas"),
				required("id_area", KindInt).References("areas", "id_area"),
			},
			Ops: OpsAll,
		},
		{
			Route: "ruleta_turno_detalle", Table: "ruleta_turno_detalle", Key: "id_ruleta_turno_detalle",
			Fields: []Field{
				required("id_ruletas", KindInt).References("ruletas", "id_ruletas"),
				required("texto", KindText),
			},
			Assets: []AssetField{asset("url_logo", "url_logo", 5*mb)},
			Ops:    OpsAll,
		},
		{
			Route: "estado_partida", Table: "estado_partida", Key: "id_estado",
			Fields: []Field{
				required("id_ruleta_turno_detalle", KindInt),
				required("id_equipo_rojo", KindInt),
				required("id_equipo_azul", KindInt),
				withDefault("contador_preguntas", KindInt, int64(0)),
				withDefault("puntos_equipo_rojo", KindInt, int64(0)),
				withDefault("puntos_equipo_azul", KindInt, int64(0)),
			},
			Ops: OpsAll,
		},
		{
			Route: "preguntas_desafio", Table: "preguntas_desafio", Key: "id_pregunta_desafio",
			Fields: []Field{
				required("id_configuracion_desa", KindInt).References("configuracion_desafio_mate", "id_configuracion_desa"),
			},
			Assets: []AssetField{
				{Column: "url_img_pregunta", FormField: "url_img_pregunta", MaxBytes: 10 * mb},
				{Column: "respuesta_correcta_url", FormField: "respuesta_correcta_url", MaxBytes: 10 * mb},
			},
			Batch: desafioBatch("preguntas_desafio", "pregunta", "respuesta", 10*mb),
			Ops:   OpList | OpGet | OpUpdate | OpDelete,
		},
		{
			Route: "preguntas_desafio_publico", Table: "preguntas_desafio_publico", Key: "id_pregunta_desafio_publico",
			Fields: []Field{
				required("id_configuracion_desa", KindInt).References("configuracion_desafio_mate", "id_configuracion_desa"),
			},
			Assets: []AssetField{
				{Column: "url_img_pregunta", FormField: "url_img_pregunta", MaxBytes: 5 * mb},
				{Column: "respuesta_correcta_url", FormField: "respuesta_correcta_url", MaxBytes: 5 * mb},
			},
			Batch: desafioBatch("preguntas_desafio_publico", "pregunta_desa", "respuesta_desa", 5*mb),
			Ops:   OpList | OpGet | OpUpdate | OpDelete,
		},
		{
			Route: "videos_desafio_mate", Table: "videos_desafio_mate", Key: "id_video_desafio",
			Fields: []Field{
				required("id_configuracion_desa", KindInt),
				required("nombre_video_desafio", KindText),
				stamp("fecha_subida"),
			},
			Assets: []AssetField{asset("url_video_desafio", "video", 100*mb)},
			Ops:    OpsAll,
		},
		{
			Route: "ruleta_desafio", Table: "ruleta_desafio", Key: "id_ruleta_desafio",
			Fields: []Field{
				required("id_configuracion_desa", KindInt),
				required("texto", KindText),
				required("tiempo", KindInt),
			},
			Assets: []AssetField{asset("url_logo", "logo", 5*mb)},
			Ops:    OpsAll,
		},
		{
			Route: "pagina_principal", Table: "pagina_principal", Key: "id_pagina",
			Fields: []Field{required("id_configuracion", KindInt)},
			Assets: []AssetField{asset("url_fondo_principal", "fondo", 5*mb)},
			Ops:    OpsAll,
		},
		{
			Route: "reloj", Table: "reloj", Key: "id_reloj",
			Fields: []Field{
				required("id_configuracion", KindInt),
				required("tiempo", KindClock),
			},
			NewestFirst: true,
			Ops:         OpsAll,
		},
		{
			Route: "publicidad", Table: "publicidad", Key: "id_publicidad",
			Fields: []Field{
				withDefault("id_configuracion", KindInt, int64(2)),
				required("nombre_video_foto", KindText),
			},
			Assets:    []AssetField{asset("url_video_foto", "archivo", 50*mb)},
			UpsertKey: "nombre_video_foto",
			Ops:       OpsAll,
		},
		{
			Route: "videos", Table: "videos", Key: "id_video",
			Fields: []Field{
				withDefault("id_configuracion", KindInt, int64(4)),
				required("nombre_video", KindText),
				stamp("fecha_subida"),
			},
			Assets:    []AssetField{asset("url_video", "video", 100*mb)},
			UpsertKey: "nombre_video",
			Ops:       OpsAll,
		},
	}
}

func desafioBatch(table, questionPrefix, answerPrefix string, maxBytes int64) *BatchSpec {
	return &BatchSpec{
		Question: Role{
			Name: "pregunta", FormField: "preguntas", UpdateField: "url_img_pregunta", Prefix: questionPrefix,
			Table: table, Column: "url_img_pregunta",
		},
		Followers: []Role{{
			Name: "respuesta", FormField: "respuestas", UpdateField: "respuesta_correcta_url", Prefix: answerPrefix,
			Table: table, Column: "respuesta_correcta_url",
		}},
		ParentField: "id_configuracion_desa",
		Parent:      Ref{Table: "configuracion_desafio_mate", Column: "id_configuracion_desa"},
		MaxBytes:    maxBytes,
	}
}
